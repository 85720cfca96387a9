package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
)

var (
	dispatchAccount  string
	dispatchCampaign string
	dispatchLimit    int
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Release due campaign steps to the outbox",
	Long:  "Each due step is re-checked against compliance, consumes one unit of the account's daily quota and is written to the outbox for the sender to pick up.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeDispatch)
		if err != nil {
			return err
		}
		defer env.Close()

		if dispatchCampaign != "" {
			res, err := env.Orchestrator.Dispatch(ctx, orgID, dispatchCampaign, dispatchAccount)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, res)
		}

		report, err := env.Orchestrator.DispatchDue(ctx, orgID, dispatchAccount, dispatchLimit)
		if err != nil {
			return err
		}
		zap.L().Info("dispatch complete",
			zap.Int("checked", report.Checked),
			zap.Int("sent", report.Sent),
			zap.Int("blocked", report.Blocked),
			zap.Bool("halted", report.Halted),
		)
		return printJSON(os.Stdout, report)
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchAccount, "account", "", "sending account (required)")
	dispatchCmd.Flags().StringVar(&dispatchCampaign, "campaign", "", "dispatch a single campaign")
	dispatchCmd.Flags().IntVar(&dispatchLimit, "limit", 500, "max campaigns to check")
	_ = dispatchCmd.MarkFlagRequired("account")
	rootCmd.AddCommand(dispatchCmd)
}
