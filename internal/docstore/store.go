// Package docstore is a JSON document store grouped by organization
// namespace, with point reads, batched writes, filtered range queries and
// single-document atomic read-modify-write.
package docstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// GlobalNamespace holds records shared across organizations.
const GlobalNamespace = "_global"

var (
	// ErrNotFound is returned by Get when no document exists.
	ErrNotFound = eris.New("docstore: not found")
	// ErrConflict signals a lost optimistic-concurrency race. Update retries
	// it internally; callers only see it once retries are exhausted.
	ErrConflict = eris.New("docstore: write conflict")
	// ErrInvalidFilter is returned for unsupported operators or field names.
	ErrInvalidFilter = eris.New("docstore: invalid filter")
)

// Op is a comparison operator in a Cond.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Cond compares a top-level (or dotted) JSON field against a value.
// time.Time values are compared as timestamps.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Cond.
func Where(field string, op Op, value any) Cond {
	return Cond{Field: field, Op: op, Value: value}
}

// Filter selects documents of one collection. Fields ending in "_at" are
// ordered as timestamps.
type Filter struct {
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// Document is a stored record.
type Document struct {
	ID        string
	Data      json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// MutateFunc receives the current document body (nil when absent) and
// returns the new body. Returning a nil body with a nil error skips the write.
type MutateFunc func(current []byte) ([]byte, error)

// Store is the persistence contract the pipeline depends on.
type Store interface {
	Get(ctx context.Context, ns, coll, id string) (*Document, error)
	Put(ctx context.Context, ns, coll, id string, data []byte) error
	PutBatch(ctx context.Context, ns, coll string, docs map[string][]byte) error
	Delete(ctx context.Context, ns, coll, id string) error
	Query(ctx context.Context, ns, coll string, f Filter) ([]Document, error)
	Update(ctx context.Context, ns, coll, id string, fn MutateFunc) error

	Migrate(ctx context.Context) error
	Close() error
}

// conflictRetry retries lost optimistic races quickly.
func conflictRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    25,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0.5,
		ShouldRetry:    IsConflict,
	}
}

// IsConflict reports whether err is a write conflict.
func IsConflict(err error) bool {
	return eris.Is(err, ErrConflict)
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// GetAs reads and decodes one document.
func GetAs[T any](ctx context.Context, s Store, ns, coll, id string) (*T, error) {
	doc, err := s.Get(ctx, ns, coll, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return nil, eris.Wrapf(err, "docstore: decode %s/%s", coll, id)
	}
	return &v, nil
}

// PutAs encodes and writes one document.
func PutAs[T any](ctx context.Context, s Store, ns, coll, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "docstore: encode %s/%s", coll, id)
	}
	return s.Put(ctx, ns, coll, id, data)
}

// QueryAs runs a filter and decodes every match.
func QueryAs[T any](ctx context.Context, s Store, ns, coll string, f Filter) ([]T, error) {
	docs, err := s.Query(ctx, ns, coll, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, eris.Wrapf(err, "docstore: decode %s/%s", coll, d.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

// ErrSkip may be returned by an UpdateAs callback to leave the document
// untouched without failing.
var ErrSkip = eris.New("docstore: skip write")

// UpdateAs atomically decodes, mutates and writes back one document. The
// callback may run several times when concurrent writers race, so it must
// not have side effects. It returns the value as last written (or as read
// when the callback returned ErrSkip).
func UpdateAs[T any](ctx context.Context, s Store, ns, coll, id string, fn func(v *T, exists bool) error) (*T, error) {
	var result *T
	err := s.Update(ctx, ns, coll, id, func(current []byte) ([]byte, error) {
		var v T
		exists := current != nil
		if exists {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, eris.Wrapf(err, "docstore: decode %s/%s", coll, id)
			}
		}
		if err := fn(&v, exists); err != nil {
			if eris.Is(err, ErrSkip) {
				result = &v
				return nil, nil
			}
			return nil, err
		}
		result = &v
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
