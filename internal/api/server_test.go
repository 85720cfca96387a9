package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore/docstoretest"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/reply"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/sendtime"
	"github.com/sells-group/outreach-cli/internal/sequence"
)

type enricherFunc func(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord

func (f enricherFunc) Enrich(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord {
	return f(ctx, c, icp)
}

func setupTestServer(t *testing.T) (http.Handler, *compliance.Gate) {
	t.Helper()
	docs := docstoretest.New(t)
	opt, err := sendtime.New(nil)
	require.NoError(t, err)

	gate := compliance.New(docs, compliance.DefaultConfig())
	campaigns := campaign.New(docs)
	tests := abtest.New(docs, abtest.DefaultConfig())
	orch := pipeline.New(pipeline.Deps{
		Store: docs,
		Gate:  gate,
		Enricher: enricherFunc(func(_ context.Context, c model.Contact, _ model.ICP) *model.EnrichedRecord {
			return model.NewEnrichedRecord(c)
		}),
		Scorer:     scoring.New(scoring.DefaultConfig()),
		Sequencer:  sequence.New(nil, opt),
		Tests:      tests,
		Campaigns:  campaigns,
		Classifier: reply.NewClassifier(nil),
	}, pipeline.Config{})

	srv := New(Deps{Store: docs, Orchestrator: orch, Gate: gate, Tests: tests, Campaigns: campaigns})
	return srv.Router([]string{"*"}), gate
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var apiICP = model.ICP{
	Niche:   "logiciel de devis pour artisans",
	Sectors: []string{"plomberie"},
	Cities:  []string{"Lyon"},
}

func TestHealth(t *testing.T) {
	h, _ := setupTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunAndFetch(t *testing.T) {
	h, _ := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/runs", runRequest{
		Contact: model.Contact{Email: "contact@durand.fr", CompanyName: "Plomberie Durand", City: "Lyon"},
		ICP:     apiICP,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, pipeline.OutcomeScheduled, res.Outcome)
	require.NotEmpty(t, res.CampaignID)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/runs/"+res.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/campaigns/"+res.CampaignID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cmp model.Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmp))
	assert.Equal(t, model.CampaignActive, cmp.Status)

	w = doJSON(t, h, http.MethodPost, "/v1/orgs/org1/campaigns/"+res.CampaignID+"/dispatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out pipeline.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, res.CampaignID, out.CampaignID)

	w = doJSON(t, h, http.MethodPost, "/v1/orgs/org1/campaigns/missing/dispatch", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRun_BadRequests(t *testing.T) {
	h, _ := setupTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed body", "not an object", http.StatusBadRequest},
		{"invalid icp", runRequest{Contact: model.Contact{Email: "a@b.fr", CompanyName: "X"}}, http.StatusBadRequest},
		{"no email", runRequest{Contact: model.Contact{CompanyName: "X"}, ICP: apiICP}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/runs", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestSuppressionRoutes(t *testing.T) {
	h, gate := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/suppressions", suppressRequest{Email: "A@B.fr", Reason: "asked"})
	require.Equal(t, http.StatusCreated, w.Code)

	d, err := gate.CanSend(context.Background(), "a@b.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSuppressed, d.Reason)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/compliance/a@b.fr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(model.ReasonSuppressed))

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/suppressions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/suppressions/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/v1/orgs/org1/suppressions/a@b.fr", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/v1/orgs/org1/suppressions/a@b.fr", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBounceAndComplaint(t *testing.T) {
	h, gate := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/bounces", bounceRequest{Email: "x@y.fr", Type: model.BounceHard, EventID: "ev1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	d, err := gate.CanSend(context.Background(), "x@y.fr", "org1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	w = doJSON(t, h, http.MethodPost, "/v1/orgs/org1/complaints", suppressRequest{Email: "z@y.fr", Reason: "spam"})
	require.Equal(t, http.StatusAccepted, w.Code)
	d, err = gate.CanSend(context.Background(), "z@y.fr", "org1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestReplyRoute(t *testing.T) {
	h, _ := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/replies", replyRequest{ContactEmail: "a@b.fr", Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/v1/orgs/org1/replies", replyRequest{
		ContactEmail: "a@b.fr",
		Text:         "Merci de me retirer de votre liste, désabonnez-moi.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cls model.ReplyClassification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cls))
	assert.Equal(t, model.ReplyUnsubscribe, cls.Category)
}

func TestABTestRoutes(t *testing.T) {
	h, _ := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/v1/orgs/org1/abtests", createTestRequest{CampaignID: "spring", MinSampleSize: 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.ABTest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	base := "/v1/orgs/org1/abtests/" + created.ID
	w = doJSON(t, h, http.MethodPost, base+"/events", eventRequest{Variant: model.VariantA, Metric: model.MetricSent})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, base+"/events", eventRequest{Variant: "C", Metric: model.MetricSent})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view testView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Test.A.Sent)

	w = doJSON(t, h, http.MethodPost, base+"/winner", winnerRequest{Winner: model.VariantB, Reason: "manual"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, base+"/winner", winnerRequest{Winner: model.VariantA})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/abtests?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(t, h, http.MethodGet, "/v1/orgs/org1/abtests/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/orgs/org1/runs", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(model.ErrInvalidICP))
	assert.Equal(t, http.StatusNotFound, statusFor(campaign.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(abtest.ErrCompleted))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pipeline.ErrNoClassifier))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
