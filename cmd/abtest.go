package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	abCampaign   string
	abLabelA     string
	abLabelB     string
	abSubjectA   string
	abSubjectB   string
	abMetric     string
	abMinSample  int
	abConfidence float64
	abReason     string
	abHistory    bool
	abLimit      int
)

var abtestCmd = &cobra.Command{
	Use:   "abtest",
	Short: "Manage A/B tests of sequence variants",
}

var abtestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a test between two variants",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := env.Tests.CreateTest(ctx, orgID, abtest.TestSpec{
			CampaignID:          abCampaign,
			A:                   model.Variant{Label: abLabelA, Subject: abSubjectA},
			B:                   model.Variant{Label: abLabelB, Subject: abSubjectB},
			TargetMetric:        model.Metric(abMetric),
			MinSampleSize:       abMinSample,
			ConfidenceThreshold: abConfidence,
		})
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, t)
	},
}

var abtestShowCmd = &cobra.Command{
	Use:   "show <test-id>",
	Short: "Show counters, statistics and insights; completes the test once significant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		t, st, err := env.Tests.CheckWinner(ctx, orgID, args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, struct {
			Test     *model.ABTest `json:"test"`
			Stats    abtest.Stats  `json:"stats"`
			Insights []string      `json:"insights"`
		}{t, st, abtest.GenerateInsights(t)})
	},
}

var abtestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List running tests, or completed ones with --history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		var tests []model.ABTest
		if abHistory {
			tests, err = env.Tests.ListHistory(ctx, orgID, abLimit)
		} else {
			tests, err = env.Tests.ListActive(ctx, orgID)
		}
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, tests)
	},
}

var abtestEventCmd = &cobra.Command{
	Use:   "event <test-id> <A|B> <sent|open|click|reply|unsubscribe>",
	Short: "Record an event for a variant",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := env.Tests.RecordEvent(ctx, orgID, args[0], model.VariantName(args[1]), model.Metric(args[2]))
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, t)
	},
}

var abtestWinnerCmd = &cobra.Command{
	Use:   "winner <test-id> <A|B>",
	Short: "Declare a winner manually",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, config.ModeStore)
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := env.Tests.DeclareWinner(ctx, orgID, args[0], model.VariantName(args[1]), abReason)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, t)
	},
}

func init() {
	f := abtestCreateCmd.Flags()
	f.StringVar(&abCampaign, "campaign", "", "campaign label the test belongs to")
	f.StringVar(&abLabelA, "label-a", "direct", "label of variant A")
	f.StringVar(&abLabelB, "label-b", "question", "label of variant B")
	f.StringVar(&abSubjectA, "subject-a", "", "subject line of variant A")
	f.StringVar(&abSubjectB, "subject-b", "", "subject line of variant B")
	f.StringVar(&abMetric, "metric", "", "target metric: open, click or reply (default from config)")
	f.IntVar(&abMinSample, "min-sample", 0, "sends per variant before a winner can be declared (default from config)")
	f.Float64Var(&abConfidence, "confidence", 0, "confidence required for a winner (default from config)")

	abtestWinnerCmd.Flags().StringVar(&abReason, "reason", "manual decision", "reason stored with the winner")
	abtestListCmd.Flags().BoolVar(&abHistory, "history", false, "list completed tests")
	abtestListCmd.Flags().IntVar(&abLimit, "limit", 50, "max completed tests to list")

	abtestCmd.AddCommand(abtestCreateCmd, abtestShowCmd, abtestListCmd, abtestEventCmd, abtestWinnerCmd)
	rootCmd.AddCommand(abtestCmd)
}
