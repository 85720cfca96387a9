package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/importer"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	batchICPPath string
	batchAccount string
	batchABTest  string
	batchLimit   int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file.csv|file.tsv|file.xlsx>",
	Short: "Run the pipeline for every contact of a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		icp, err := loadICP(batchICPPath)
		if err != nil {
			return err
		}

		file, err := importer.Load(ctx, args[0])
		if err != nil {
			return err
		}
		for _, rej := range file.Rejected {
			zap.L().Warn("row rejected", zap.Int("row", rej.Row), zap.String("error", rej.Error))
		}
		contacts := file.Contacts
		if batchLimit > 0 && len(contacts) > batchLimit {
			contacts = contacts[:batchLimit]
		}

		env, err := initEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.RunBatch(ctx, orgID, contacts, icp, pipeline.RunOptions{
			AccountID: batchAccount,
			ABTestID:  batchABTest,
		})
		if err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.Int("contacts", len(contacts)),
			zap.Int("rejected_rows", len(file.Rejected)),
			zap.Int("scheduled", report.Scheduled),
			zap.Int("blocked", report.Blocked),
			zap.Int("failed", report.Failed),
			zap.Int("duplicates", report.Duplicates),
		)
		return printJSON(os.Stdout, report)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchICPPath, "icp", "icp.yaml", "ideal customer profile (YAML)")
	batchCmd.Flags().StringVar(&batchAccount, "account", "", "sending account whose daily quota applies")
	batchCmd.Flags().StringVar(&batchABTest, "ab-test", "", "A/B test assigning the message variants")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of contacts to process")
	rootCmd.AddCommand(batchCmd)
}
