package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scoring"
)

var (
	enrichContact contactFlags
	enrichICPPath string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single company through the source waterfall",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
		}
		icp, err := optionalICP(enrichICPPath)
		if err != nil {
			return err
		}
		rec := initWaterfall(initThrottles()).Enrich(cmd.Context(), enrichContact.contact(), icp)
		zap.L().Info("enrichment complete",
			zap.String("company", rec.Contact.CompanyName),
			zap.Int("completeness", rec.Completeness),
			zap.Int("sources", len(rec.Sources)),
		)
		return printJSON(os.Stdout, rec)
	},
}

var (
	scoreContact contactFlags
	scoreICPPath string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Enrich a single company and score it against the ideal customer profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
		}
		icp, err := loadICP(scoreICPPath)
		if err != nil {
			return err
		}
		rec := initWaterfall(initThrottles()).Enrich(cmd.Context(), scoreContact.contact(), icp)
		score := scoring.New(scoring.DefaultConfig()).Score(rec, icp)
		return printJSON(os.Stdout, struct {
			Record *model.EnrichedRecord `json:"record"`
			Score  *model.Score          `json:"score"`
		}{rec, score})
	},
}

// optionalICP loads the profile when a path is given.
func optionalICP(path string) (model.ICP, error) {
	if path == "" {
		return model.ICP{}, nil
	}
	return loadICP(path)
}

func init() {
	enrichContact.bind(enrichCmd.Flags())
	enrichCmd.Flags().StringVar(&enrichICPPath, "icp", "", "ideal customer profile (YAML), used for search hints")
	rootCmd.AddCommand(enrichCmd)

	scoreContact.bind(scoreCmd.Flags())
	scoreCmd.Flags().StringVar(&scoreICPPath, "icp", "icp.yaml", "ideal customer profile (YAML)")
	rootCmd.AddCommand(scoreCmd)
}
