package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	sweepReplay  bool
	sweepICPPath string
	sweepAccount string
	sweepLimit   int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire cooling-off windows and resume paused campaigns",
	Long:  "Expires cooling-off windows, resumes campaigns whose pause ended and, with --replay, retries dead-lettered contacts that are due.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Sweep(ctx, orgID)
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete",
			zap.Int("cooling_off_removed", res.CoolingOffRemoved),
			zap.Int("campaigns_resumed", res.CampaignsResumed),
		)
		if !sweepReplay {
			return printJSON(os.Stdout, res)
		}

		icp, err := loadICP(sweepICPPath)
		if err != nil {
			return err
		}
		replay, err := env.Orchestrator.ReplayDeadLetters(ctx, orgID, icp, pipeline.RunOptions{AccountID: sweepAccount}, sweepLimit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, struct {
			Sweep  pipeline.SweepResult   `json:"sweep"`
			Replay *pipeline.ReplayReport `json:"replay"`
		}{res, replay})
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepReplay, "replay", false, "also retry due dead letters")
	sweepCmd.Flags().StringVar(&sweepICPPath, "icp", "icp.yaml", "ideal customer profile (YAML) for replays")
	sweepCmd.Flags().StringVar(&sweepAccount, "account", "", "sending account whose daily quota applies to replays")
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 100, "max dead letters to replay")
	rootCmd.AddCommand(sweepCmd)
}
