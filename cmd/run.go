package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	runContact contactFlags
	runICPPath string
	runAccount string
	runABTest  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for a single contact",
	Long:  "Checks compliance and quota, enriches and scores the company, generates a sequence and starts a campaign.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		icp, err := loadICP(runICPPath)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Run(ctx, orgID, runContact.contact(), icp, pipeline.RunOptions{
			AccountID: runAccount,
			ABTestID:  runABTest,
		})
		if err != nil {
			if res != nil {
				_ = printJSON(os.Stdout, res)
			}
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("email", res.Contact.Email),
			zap.String("outcome", string(res.Outcome)),
			zap.String("campaign_id", res.CampaignID),
		)

		return printJSON(os.Stdout, res)
	},
}

func init() {
	runContact.bind(runCmd.Flags())
	runCmd.Flags().StringVar(&runICPPath, "icp", "icp.yaml", "ideal customer profile (YAML)")
	runCmd.Flags().StringVar(&runAccount, "account", "", "sending account whose daily quota applies")
	runCmd.Flags().StringVar(&runABTest, "ab-test", "", "A/B test assigning the message variant")
	_ = runCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(runCmd)
}
