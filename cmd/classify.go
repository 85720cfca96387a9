package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/reply"
)

var (
	classifyText     string
	classifyEmail    string
	classifyCampaign string
	classifySubject  string
	classifyApply    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a reply, and with --apply act on it",
	Long:  "Reads the reply from --text or stdin. Without --apply nothing is stored; with --apply the campaign, suppression list and A/B counters are updated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text := classifyText
		if text == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read reply from stdin")
			}
			text = string(data)
		}
		in := reply.Inbound{
			OrgID:        orgID,
			CampaignID:   classifyCampaign,
			ContactEmail: classifyEmail,
			Subject:      classifySubject,
			Text:         text,
		}

		if !classifyApply {
			if err := cfg.Validate(config.ModeLocal); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			cls, err := initClassifier(initThrottles(), loc).Classify(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, cls)
		}

		env, err := initEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		cls, err := env.Orchestrator.HandleReply(ctx, in)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, cls)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyText, "text", "", "reply text (default: read stdin)")
	classifyCmd.Flags().StringVar(&classifyEmail, "email", "", "address the reply came from")
	classifyCmd.Flags().StringVar(&classifyCampaign, "campaign", "", "campaign the reply belongs to")
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "reply subject line")
	classifyCmd.Flags().BoolVar(&classifyApply, "apply", false, "execute the recommended actions")
	rootCmd.AddCommand(classifyCmd)
}
