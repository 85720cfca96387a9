package abtest

import (
	"math"

	"github.com/sells-group/outreach-cli/internal/model"
)

// zBuckets maps a z-score floor to the reported confidence. Below the last
// bucket the confidence is z/2.
var zBuckets = []struct {
	z, confidence float64
}{
	{2.58, 0.99},
	{1.96, 0.95},
	{1.65, 0.90},
	{1.28, 0.80},
}

// Rates are a variant's ratios against sends.
type Rates struct {
	Sent        int     `json:"sent"`
	Open        float64 `json:"open_rate"`
	Click       float64 `json:"click_rate"`
	Reply       float64 `json:"reply_rate"`
	Unsubscribe float64 `json:"unsubscribe_rate"`
}

// Stats is the evaluation of a test at one point in time.
type Stats struct {
	A             Rates              `json:"a"`
	B             Rates              `json:"b"`
	TargetMetric  model.Metric       `json:"target_metric"`
	Leader        *model.VariantName `json:"leader,omitempty"`
	Lift          float64            `json:"lift"`
	ZScore        float64            `json:"z_score"`
	Confidence    float64            `json:"confidence"`
	SampleReached bool               `json:"sample_reached"`
	Significant   bool               `json:"significant"`
}

// CanDeclare reports whether a winner may be declared automatically.
func (s Stats) CanDeclare() bool {
	return s.SampleReached && s.Significant && s.Leader != nil
}

func rates(v model.Variant) Rates {
	return Rates{
		Sent:        v.Sent,
		Open:        v.Rate(model.MetricOpen),
		Click:       v.Rate(model.MetricClick),
		Reply:       v.Rate(model.MetricReply),
		Unsubscribe: v.Rate(model.MetricUnsubscribe),
	}
}

// ComputeStats evaluates t against its target metric, sample size and
// confidence threshold.
func ComputeStats(t *model.ABTest) Stats {
	m := t.TargetMetric
	s := Stats{
		A:             rates(t.A),
		B:             rates(t.B),
		TargetMetric:  m,
		SampleReached: t.A.Sent >= t.MinSampleSize && t.B.Sent >= t.MinSampleSize,
	}

	ra, rb := t.A.Rate(m), t.B.Rate(m)
	switch {
	case ra > rb:
		leader := model.VariantA
		s.Leader = &leader
		s.Lift = lift(ra, rb)
	case rb > ra:
		leader := model.VariantB
		s.Leader = &leader
		s.Lift = lift(rb, ra)
	}

	s.ZScore = zScore(t.A.Count(m), t.A.Sent, t.B.Count(m), t.B.Sent)
	s.Confidence = Confidence(s.ZScore)
	s.Significant = s.Confidence >= t.ConfidenceThreshold
	return s
}

// lift is the leader's relative improvement over the other variant, 0 when
// the other rate is zero.
func lift(hi, lo float64) float64 {
	if lo == 0 {
		return 0
	}
	return (hi - lo) / lo
}

// zScore is the absolute two-proportion z statistic with pooled variance.
func zScore(x1, n1, x2, n2 int) float64 {
	if n1 == 0 || n2 == 0 {
		return 0
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	p := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(p * (1 - p) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0
	}
	return math.Abs(p1-p2) / se
}

// Confidence maps a z-score to the bucketed confidence level.
func Confidence(z float64) float64 {
	for _, b := range zBuckets {
		if z >= b.z {
			return b.confidence
		}
	}
	return z / 2
}
