package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

func TestPrioritize(t *testing.T) {
	tests := []struct {
		name     string
		fit      int
		intent   int
		priority model.Priority
		category model.Category
	}{
		{"hot", 36, 22, model.PriorityA, model.CategoryHot},
		{"hot boundary", 35, 20, model.PriorityA, model.CategoryHot},
		{"strong fit some intent", 32, 12, model.PriorityB, model.CategoryWarm},
		{"strong fit no intent", 30, 0, model.PriorityB, model.CategoryWarm},
		{"intent alone", 10, 15, model.PriorityB, model.CategoryWarm},
		{"cold", 26, 5, model.PriorityC, model.CategoryCold},
		{"nurture", 10, 5, model.PriorityD, model.CategoryNurture},
		{"zero", 0, 0, model.PriorityD, model.CategoryNurture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c := Prioritize(tt.fit, tt.intent)
			assert.Equal(t, tt.priority, p)
			assert.Equal(t, tt.category, c)
		})
	}
}

func TestScoreSize(t *testing.T) {
	small := []model.SizeBracket{model.SizeSmall}
	tests := []struct {
		name      string
		employees int
		targets   []model.SizeBracket
		want      int
	}{
		{"exact", 20, small, 12},
		{"adjacent", 5, small, 8},
		{"far", 500, small, 4},
		{"unknown", -1, small, 4},
		{"no target", 20, nil, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreSize(tt.employees, tt.targets))
		})
	}
}

func TestScoreLocation(t *testing.T) {
	metros := DefaultConfig().Metros
	tests := []struct {
		name    string
		contact model.Contact
		icp     model.ICP
		want    int
	}{
		{"exact city", model.Contact{City: "Lyon"}, model.ICP{Cities: []string{"lyon"}}, 10},
		{"city with accents", model.Contact{City: "Vénissieux"}, model.ICP{Cities: []string{"Venissieux"}}, 10},
		{"same metro via city", model.Contact{City: "Villeurbanne"}, model.ICP{Cities: []string{"Lyon"}}, 9},
		{"same metro via region", model.Contact{City: "Bron"}, model.ICP{Region: "Lyon"}, 9},
		{"same department", model.Contact{City: "Givors", PostalCode: "69700"}, model.ICP{Cities: []string{"Lyon"}, Departments: []string{"69"}}, 8},
		{"elsewhere", model.Contact{City: "Brest", PostalCode: "29200"}, model.ICP{Cities: []string{"Lyon"}, Departments: []string{"69"}}, 2},
		{"no target", model.Contact{City: "Brest"}, model.ICP{}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreLocation(tt.contact, tt.icp, metros))
		})
	}
}

func TestScoreRevenue(t *testing.T) {
	target := model.ICP{RevenueMin: 500_000, RevenueMax: 5_000_000}
	assert.Equal(t, 8, scoreRevenue(ptrFloat64(1_000_000), target))
	assert.Equal(t, 3, scoreRevenue(ptrFloat64(50_000), target))
	assert.Equal(t, 5, scoreRevenue(ptrFloat64(50_000), model.ICP{}))
	assert.Equal(t, 2, scoreRevenue(nil, target))
	assert.Equal(t, 8, scoreRevenue(ptrFloat64(9_000_000), model.ICP{RevenueMin: 1_000_000}))
}

func TestScoreSector(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name    string
		record  *model.EnrichedRecord
		targets []string
		want    int
	}{
		{"exact", &model.EnrichedRecord{Contact: model.Contact{Sector: "Plomberie"}}, []string{"plomberie"}, 15},
		{"category keyword", &model.EnrichedRecord{Description: "Chauffagiste à Lyon"}, []string{"plomberie"}, 12},
		{"no substring false positive", &model.EnrichedRecord{Description: "Barbier traditionnel"}, []string{"restaurant"}, 5},
		{"generic sme", &model.EnrichedRecord{Description: "Cabinet dentaire"}, []string{"PME"}, 8},
		{"generic but large", &model.EnrichedRecord{Description: "Usine", Financial: model.FinancialData{Employees: ptrInt(800)}}, []string{"pme"}, 5},
		{"unknown", &model.EnrichedRecord{}, []string{"plomberie"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreSector(tt.record, tt.targets, cfg))
		})
	}
}

func TestDataQuality(t *testing.T) {
	cfg := DefaultConfig()

	r := &model.EnrichedRecord{Emails: []string{"contact@acme.fr"}}
	q, direct := dataQuality(r, cfg)
	assert.Equal(t, 4, q)
	assert.False(t, direct)

	r.Emails = append(r.Emails, "marie.dupont@acme.fr")
	r.DecisionMakers = []model.DecisionMaker{{Name: "Marie Dupont"}}
	r.Phones = []string{"04 78 12 34 56"}
	r.Social.LinkedIn = "https://linkedin.com/company/acme"
	r.Completeness = 85
	q, direct = dataQuality(r, cfg)
	assert.Equal(t, 20, q, "8+5+4+3+2 capped at 20")
	assert.True(t, direct)
}

func richRecord() *model.EnrichedRecord {
	created := testNow.AddDate(-1, 0, 0)
	return &model.EnrichedRecord{
		Contact:        model.Contact{CompanyName: "Durand", Email: "jp.durand@durand.fr", City: "Lyon", PostalCode: "69003", Sector: "plomberie"},
		Description:    "Plombier chauffagiste",
		Phones:         []string{"04 78 12 34 56"},
		Social:         model.SocialLinks{LinkedIn: "https://linkedin.com/company/durand"},
		Legal:          model.LegalData{RegistryID: "123", CreatedAt: &created},
		Financial:      model.FinancialData{Revenue: ptrFloat64(1_000_000), Employees: ptrInt(12), FundingRecent: true},
		DecisionMakers: []model.DecisionMaker{{Name: "Jean-Pierre Durand"}},
		Reviews: []model.Review{
			{Rating: 1, Text: "Injoignable, jamais rappelé", Date: testNow.AddDate(0, 0, -10)},
		},
		HasProvider:  ptrBool(false),
		Website:      model.WebsiteContent{HiringPage: true, CopyrightYear: 2019},
		Network:      model.NetworkProfile{GrowthPct: 25, ManagementChange: true, Relocated: true, RecentPosts: 4},
		Completeness: 90,
		Version:      42,
	}
}

func TestEngine_Score(t *testing.T) {
	e := New(Config{}, WithClock(func() time.Time { return testNow }))
	icp := model.ICP{
		Niche:      "sites web",
		Sectors:    []string{"plomberie"},
		Sizes:      []model.SizeBracket{model.SizeSmall},
		Cities:     []string{"Lyon"},
		RevenueMin: 500_000,
		RevenueMax: 5_000_000,
	}
	r := richRecord()

	s := e.Score(r, icp)
	assert.Equal(t, 50, s.Fit)
	assert.Equal(t, model.ScoreBreakdown{Sector: 15, Size: 12, Location: 10, Revenue: 8, DecisionMaker: 5, IntentRaw: 100}, s.Breakdown)
	assert.Equal(t, 30, s.Intent)
	assert.Len(t, s.Signals, 10)
	require.NotNil(t, s.StrongestSignal)
	assert.Equal(t, model.SignalReviewPain, s.StrongestSignal.Type)
	assert.Equal(t, 20, s.DataQuality)
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, model.PriorityA, s.Priority)
	assert.Equal(t, model.CategoryHot, s.Category)
	assert.Equal(t, "immediate", s.Recommendation.Urgency)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, int64(42), s.RecordVersion)
	assert.Equal(t, testNow, s.ComputedAt)
}

func TestEngine_ScoreSparseRecord(t *testing.T) {
	e := New(Config{}, WithClock(func() time.Time { return testNow }))
	r := model.NewEnrichedRecord(model.Contact{CompanyName: "Inconnu"})

	s := e.Score(r, model.ICP{Niche: "x", Sectors: []string{"plomberie"}})
	assert.GreaterOrEqual(t, s.Total, 0)
	assert.LessOrEqual(t, s.Total, 100)
	assert.Zero(t, s.Intent)
	assert.Nil(t, s.StrongestSignal)
	assert.Equal(t, model.PriorityD, s.Priority)
	assert.Contains(t, s.Warnings, "no email address found")
	assert.Contains(t, s.Warnings, "no named decision-maker")
}

func TestEngine_ScoreIsFreshSnapshot(t *testing.T) {
	e := New(Config{}, WithClock(func() time.Time { return testNow }))
	r := richRecord()
	first := e.Score(r, model.ICP{Niche: "x"})

	r.Reviews = nil
	r.Version = 43
	second := e.Score(r, model.ICP{Niche: "x"})

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(42), first.RecordVersion)
	assert.True(t, first.HasSignal(model.SignalReviewPain))
	assert.False(t, second.HasSignal(model.SignalReviewPain))
}

func TestRecommend_ReturnsCopy(t *testing.T) {
	a := Recommend(model.PriorityA)
	a.Channels[0] = model.ChannelSMS
	assert.Equal(t, model.ChannelPhone, Recommend(model.PriorityA).Channels[0])
	assert.Equal(t, "low", Recommend("Z").Urgency)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.PainKeywords = nil
	cfg.GrowthPct = -1
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pain_keywords")
	assert.Contains(t, err.Error(), "growth_pct")
}
