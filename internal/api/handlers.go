package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/reply"
)

func org(r *http.Request) string { return chi.URLParam(r, "org") }

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type addContactRequest struct {
	Contact model.Contact `json:"contact"`
	Source  string        `json:"source"`
}

func (s *Server) addContact(w http.ResponseWriter, r *http.Request) {
	var req addContactRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.orch.AddContact(r.Context(), org(r), req.Contact, req.Source); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

type runRequest struct {
	Contact   model.Contact `json:"contact"`
	ICP       model.ICP     `json:"icp"`
	AccountID string        `json:"account_id"`
	ABTestID  string        `json:"ab_test_id"`
}

// run executes the pipeline synchronously. A failed phase still answers
// with the partial result so the caller sees which phase broke.
func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.orch.Run(r.Context(), org(r), req.Contact, req.ICP, pipeline.RunOptions{
		AccountID: req.AccountID,
		ABTestID:  req.ABTestID,
	})
	if err != nil {
		if res != nil && statusFor(err) == http.StatusInternalServerError {
			respondJSON(w, http.StatusBadGateway, res)
			return
		}
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	res, err := docstore.GetAs[pipeline.Result](r.Context(), s.docs, org(r), pipeline.CollRuns, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type replyRequest struct {
	CampaignID   string `json:"campaign_id"`
	ContactEmail string `json:"contact_email"`
	ContactName  string `json:"contact_name"`
	CompanyName  string `json:"company_name"`
	Subject      string `json:"subject"`
	Text         string `json:"text"`
	LastMessage  string `json:"last_message"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if !decode(w, r, &req) {
		return
	}
	cls, err := s.orch.HandleReply(r.Context(), reply.Inbound{
		OrgID:        org(r),
		CampaignID:   req.CampaignID,
		ContactEmail: req.ContactEmail,
		ContactName:  req.ContactName,
		CompanyName:  req.CompanyName,
		Subject:      req.Subject,
		Text:         req.Text,
		LastMessage:  req.LastMessage,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cls)
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.orch.Sweep(r.Context(), org(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.campaigns.Get(r.Context(), org(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.orch.Dispatch(r.Context(), org(r), chi.URLParam(r, "id"), r.URL.Query().Get("account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) dispatchDue(w http.ResponseWriter, r *http.Request) {
	res, err := s.orch.DispatchDue(r.Context(), org(r), r.URL.Query().Get("account"), limitParam(r, 0))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) canSend(w http.ResponseWriter, r *http.Request) {
	d, err := s.gate.CanSend(r.Context(), chi.URLParam(r, "email"), org(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) listSuppressions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.gate.ListSuppressions(r.Context(), org(r), limitParam(r, 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"suppressions": entries, "count": len(entries)})
}

type suppressRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

func (s *Server) suppress(w http.ResponseWriter, r *http.Request) {
	var req suppressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.gate.AddToSuppressionList(r.Context(), org(r), req.Email, req.Reason, compliance.SourceManual); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "suppressed", "email": model.NormalizeEmail(req.Email)})
}

func (s *Server) unsuppress(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.RemoveFromSuppressionList(r.Context(), org(r), chi.URLParam(r, "email")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) suppressionStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.gate.Stats(r.Context(), org(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

type bounceRequest struct {
	Email   string           `json:"email"`
	Type    model.BounceType `json:"type"`
	Reason  string           `json:"reason"`
	EventID string           `json:"event_id"`
}

func (s *Server) bounce(w http.ResponseWriter, r *http.Request) {
	var req bounceRequest
	if !decode(w, r, &req) {
		return
	}
	ev := compliance.BounceEvent{Email: req.Email, Type: req.Type, Reason: req.Reason, EventID: req.EventID}
	if err := s.gate.RecordBounce(r.Context(), org(r), ev); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) complaint(w http.ResponseWriter, r *http.Request) {
	var req suppressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.gate.RecordComplaint(r.Context(), org(r), req.Email, req.Reason); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) listTests(w http.ResponseWriter, r *http.Request) {
	var (
		tests []model.ABTest
		err   error
	)
	if r.URL.Query().Get("status") == string(model.ABCompleted) {
		tests, err = s.tests.ListHistory(r.Context(), org(r), limitParam(r, 50))
	} else {
		tests, err = s.tests.ListActive(r.Context(), org(r))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tests": tests, "count": len(tests)})
}

type createTestRequest struct {
	CampaignID          string        `json:"campaign_id"`
	A                   model.Variant `json:"a"`
	B                   model.Variant `json:"b"`
	TargetMetric        model.Metric  `json:"target_metric"`
	MinSampleSize       int           `json:"min_sample_size"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
}

func (s *Server) createTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.tests.CreateTest(r.Context(), org(r), abtest.TestSpec{
		CampaignID:          req.CampaignID,
		A:                   req.A,
		B:                   req.B,
		TargetMetric:        req.TargetMetric,
		MinSampleSize:       req.MinSampleSize,
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

type testView struct {
	Test     *model.ABTest `json:"test"`
	Stats    abtest.Stats  `json:"stats"`
	Insights []string      `json:"insights"`
}

// getTest also runs the winner check, so a test that just crossed the
// threshold completes on read.
func (s *Server) getTest(w http.ResponseWriter, r *http.Request) {
	t, st, err := s.tests.CheckWinner(r.Context(), org(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, testView{Test: t, Stats: st, Insights: abtest.GenerateInsights(t)})
}

type eventRequest struct {
	Variant model.VariantName `json:"variant"`
	Metric  model.Metric      `json:"metric"`
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.tests.RecordEvent(r.Context(), org(r), chi.URLParam(r, "id"), req.Variant, req.Metric)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

type winnerRequest struct {
	Winner model.VariantName `json:"winner"`
	Reason string            `json:"reason"`
}

func (s *Server) declareWinner(w http.ResponseWriter, r *http.Request) {
	var req winnerRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.tests.DeclareWinner(r.Context(), org(r), chi.URLParam(r, "id"), req.Winner, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
