package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	suppressReason string
	suppressLimit  int
	coolingOffFor  time.Duration
	bounceType     string
	bounceEventID  string
)

var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Manage the suppression list and compliance events",
}

var suppressAddCmd = &cobra.Command{
	Use:   "add <email>...",
	Short: "Suppress addresses permanently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, email := range args {
			if err := env.Gate.AddToSuppressionList(ctx, orgID, email, suppressReason, compliance.SourceManual); err != nil {
				return err
			}
			zap.L().Info("address suppressed", zap.String("email", model.NormalizeEmail(email)))
		}
		return nil
	},
}

var suppressRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Lift a suppression",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Gate.RemoveFromSuppressionList(ctx, orgID, args[0])
	},
}

var suppressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppressed addresses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Gate.ListSuppressions(ctx, orgID, suppressLimit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, entries)
	},
}

var suppressStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count suppressions by reason and source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Gate.Stats(ctx, orgID)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, st)
	},
}

var suppressCheckCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Show whether an address may be contacted now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Gate.CanSend(ctx, args[0], orgID)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, d)
	},
}

var suppressCoolCmd = &cobra.Command{
	Use:   "cool <email>",
	Short: "Hold an address for a while without suppressing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Gate.AddToCoolingOff(ctx, orgID, args[0], suppressReason, coolingOffFor)
	},
}

var suppressBounceCmd = &cobra.Command{
	Use:   "bounce <email>",
	Short: "Record a delivery bounce",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Gate.RecordBounce(ctx, orgID, compliance.BounceEvent{
			Email:   args[0],
			Type:    model.BounceType(bounceType),
			Reason:  suppressReason,
			EventID: bounceEventID,
		})
	},
}

var suppressComplaintCmd = &cobra.Command{
	Use:   "complaint <email>",
	Short: "Record a spam complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Gate.RecordComplaint(ctx, orgID, args[0], suppressReason)
	},
}

func init() {
	suppressCmd.PersistentFlags().StringVar(&suppressReason, "reason", "", "reason stored with the entry")
	suppressListCmd.Flags().IntVar(&suppressLimit, "limit", 100, "max entries to list")
	suppressCoolCmd.Flags().DurationVar(&coolingOffFor, "for", 90*24*time.Hour, "cooling-off duration")
	suppressBounceCmd.Flags().StringVar(&bounceType, "type", string(model.BounceHard), "bounce type (hard or soft)")
	suppressBounceCmd.Flags().StringVar(&bounceEventID, "event-id", "", "provider event ID, deduplicated")

	suppressCmd.AddCommand(suppressAddCmd, suppressRemoveCmd, suppressListCmd, suppressStatsCmd,
		suppressCheckCmd, suppressCoolCmd, suppressBounceCmd, suppressComplaintCmd)
	rootCmd.AddCommand(suppressCmd)
}
