package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/importer"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.tsv|file.xlsx>",
	Short: "Store the contacts of a spreadsheet without running the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := importer.Load(ctx, args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		stored := 0
		for _, c := range file.Contacts {
			if err := env.Orchestrator.AddContact(ctx, orgID, c, importSource); err != nil {
				zap.L().Warn("contact not stored", zap.String("company", c.CompanyName), zap.Error(err))
				continue
			}
			stored++
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("stored", stored),
			zap.Int("rejected_rows", len(file.Rejected)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "import", "source label stored with each contact")
	rootCmd.AddCommand(importCmd)
}
