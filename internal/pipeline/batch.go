package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// BatchItem is the outcome of one contact in a batch.
type BatchItem struct {
	Contact model.Contact `json:"contact"`
	Result  *Result       `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// BatchReport summarizes RunBatch. Items keep the input order.
type BatchReport struct {
	Items     []BatchItem `json:"items"`
	Scheduled  int         `json:"scheduled"`
	Blocked    int         `json:"blocked"`
	Failed     int         `json:"failed"`
	Duplicates int         `json:"duplicates"`
}

// errDuplicate marks a batch row whose address appeared on an earlier row.
var errDuplicate = eris.New("pipeline: duplicate contact in batch")

// RunBatch runs contacts in parallel, at most Config.Concurrency at a time.
// A failing contact is dead-lettered and never stops the others. A repeated
// address is only run for its first row. Only an invalid ICP or a cancelled
// context return an error.
func (o *Orchestrator) RunBatch(ctx context.Context, orgID string, contacts []model.Contact, icp model.ICP, opts RunOptions) (*BatchReport, error) {
	if err := icp.Validate(); err != nil {
		return nil, err
	}
	log := o.log.With(zap.String("org_id", orgID))
	log.Info("pipeline: starting batch", zap.Int("contacts", len(contacts)), zap.Int("concurrency", o.cfg.Concurrency))

	report := &BatchReport{Items: make([]BatchItem, len(contacts))}
	var scheduled, blocked, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	seen := make(map[string]int, len(contacts))
	for i, c := range contacts {
		if gctx.Err() != nil {
			break
		}
		if key := c.Key(); key != "" {
			if first, dup := seen[key]; dup {
				report.Items[i] = BatchItem{Contact: c, Error: eris.Wrapf(errDuplicate, "row %d", first+1).Error()}
				report.Duplicates++
				continue
			}
			seen[key] = i
		}
		g.Go(func() error {
			item := BatchItem{Contact: c}
			res, err := o.Run(gctx, orgID, c, icp, opts)
			item.Result = res
			switch {
			case err != nil:
				failed.Add(1)
				item.Error = err.Error()
				if gctx.Err() == nil {
					o.deadLetter(gctx, orgID, c, res, err)
				}
			case res.Outcome == OutcomeBlocked:
				blocked.Add(1)
			default:
				scheduled.Add(1)
			}
			report.Items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	report.Scheduled = int(scheduled.Load())
	report.Blocked = int(blocked.Load())
	report.Failed = int(failed.Load())
	log.Info("pipeline: batch complete",
		zap.Int("scheduled", report.Scheduled),
		zap.Int("blocked", report.Blocked),
		zap.Int("failed", report.Failed),
		zap.Int("duplicates", report.Duplicates),
	)
	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "pipeline: batch interrupted")
	}
	return report, nil
}

// deadLetter stores a failed contact for replay. Store failures are only
// logged.
func (o *Orchestrator) deadLetter(ctx context.Context, orgID string, c model.Contact, res *Result, runErr error) {
	stage := ""
	if res != nil {
		stage = res.FailedPhase()
	}
	now := o.now().UTC()
	dl := resilience.DeadLetter{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		Contact:    c,
		Stage:      stage,
		Error:      runErr.Error(),
		ErrorType:  resilience.ClassifyError(runErr),
		MaxRetries: o.cfg.MaxRetries,
		CreatedAt:  now,
	}
	dl.Backoff(o.cfg.Retry, now)
	if err := docstore.PutAs(ctx, o.docs, orgID, CollDeadLetters, dl.ID, dl); err != nil {
		o.log.Error("pipeline: failed to write dead letter", zap.String("email", c.Key()), zap.Error(err))
		return
	}
	o.log.Warn("pipeline: contact dead-lettered",
		zap.String("org_id", orgID),
		zap.String("email", c.Key()),
		zap.String("stage", stage),
		zap.String("error_type", dl.ErrorType),
	)
}

// ReplayReport summarizes ReplayDeadLetters.
type ReplayReport struct {
	Replayed  int `json:"replayed"`
	Recovered int `json:"recovered"`
	Requeued  int `json:"requeued"`
	Exhausted int `json:"exhausted"`
}

// ReplayDeadLetters reruns due dead letters that can still be retried. A
// successful run deletes the entry; a failure counts a retry and pushes the
// next attempt back.
func (o *Orchestrator) ReplayDeadLetters(ctx context.Context, orgID string, icp model.ICP, opts RunOptions, limit int) (*ReplayReport, error) {
	if err := icp.Validate(); err != nil {
		return nil, err
	}
	due, err := docstore.QueryAs[resilience.DeadLetter](ctx, o.docs, orgID, CollDeadLetters, docstore.Filter{
		Where:   []docstore.Cond{docstore.Where("next_retry_at", docstore.OpLte, o.now().UTC())},
		OrderBy: "next_retry_at",
		Limit:   limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list dead letters")
	}

	report := &ReplayReport{}
	for _, dl := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !dl.CanRetry() {
			report.Exhausted++
			continue
		}
		report.Replayed++
		res, runErr := o.Run(ctx, orgID, dl.Contact, icp, opts)
		if runErr == nil {
			report.Recovered++
			if err := o.docs.Delete(ctx, orgID, CollDeadLetters, dl.ID); err != nil {
				return report, eris.Wrap(err, "pipeline: delete dead letter")
			}
			continue
		}

		report.Requeued++
		now := o.now().UTC()
		dl.RetryCount++
		dl.Error = runErr.Error()
		dl.ErrorType = resilience.ClassifyError(runErr)
		if res != nil {
			dl.Stage = res.FailedPhase()
		}
		dl.Backoff(o.cfg.Retry, now)
		if err := docstore.PutAs(ctx, o.docs, orgID, CollDeadLetters, dl.ID, dl); err != nil {
			return report, eris.Wrap(err, "pipeline: requeue dead letter")
		}
	}
	o.log.Info("pipeline: dead letters replayed",
		zap.String("org_id", orgID),
		zap.Int("replayed", report.Replayed),
		zap.Int("recovered", report.Recovered),
		zap.Int("requeued", report.Requeued),
	)
	return report, nil
}
