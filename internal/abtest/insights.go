package abtest

import (
	"fmt"

	"github.com/sells-group/outreach-cli/internal/model"
)

// GenerateInsights describes a test's state in plain sentences for the
// operator.
func GenerateInsights(t *model.ABTest) []string {
	s := ComputeStats(t)
	m := t.TargetMetric
	var out []string

	if t.Winner != nil {
		how := "automatically"
		if t.ManualWinner {
			how = "manually"
		}
		out = append(out, fmt.Sprintf("Variant %s was declared the winner %s: %s.", *t.Winner, how, t.WinnerReason))
	}

	if !s.SampleReached {
		need := max(t.MinSampleSize-t.A.Sent, t.MinSampleSize-t.B.Sent, 0)
		out = append(out, fmt.Sprintf("Not enough data yet: %d more sends needed on the smaller variant (minimum %d per variant).", need, t.MinSampleSize))
	}

	switch {
	case s.Leader == nil && t.A.Sent+t.B.Sent > 0:
		out = append(out, fmt.Sprintf("Both variants perform the same on %s rate (%.1f%%).", m, 100*t.A.Rate(m)))
	case s.Leader != nil:
		lead := t.Variant(*s.Leader)
		trail := t.Variant(other(*s.Leader))
		line := fmt.Sprintf("Variant %s leads on %s rate: %.1f%% vs %.1f%%", *s.Leader, m, 100*lead.Rate(m), 100*trail.Rate(m))
		if s.Lift > 0 {
			line += fmt.Sprintf(" (+%.0f%% relative)", 100*s.Lift)
		}
		out = append(out, line+".")
		if t.Winner == nil {
			if s.Significant {
				out = append(out, fmt.Sprintf("The difference is significant at %.0f%% confidence.", 100*s.Confidence))
			} else {
				out = append(out, fmt.Sprintf("Confidence is %.0f%%, below the %.0f%% required to declare a winner.", 100*s.Confidence, 100*t.ConfidenceThreshold))
			}
		}
	}

	if a, b := s.A.Unsubscribe, s.B.Unsubscribe; a != b && (a >= 0.02 || b >= 0.02) {
		worse := model.VariantA
		if b > a {
			worse = model.VariantB
		}
		out = append(out, fmt.Sprintf("Variant %s has a high unsubscribe rate (%.1f%%): review its tone.", worse, 100*max(a, b)))
	}
	if m != model.MetricOpen && s.A.Open > 0 && s.B.Open > 0 {
		if d := s.A.Open - s.B.Open; d >= 0.1 || d <= -0.1 {
			better := model.VariantA
			if d < 0 {
				better = model.VariantB
			}
			out = append(out, fmt.Sprintf("Subject line of variant %s gets noticeably more opens.", better))
		}
	}
	return out
}
