package persist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/florianilch/lodestone/internal/metrics"
	"github.com/florianilch/lodestone/internal/settings"
)

const tracerName = "github.com/florianilch/lodestone/internal/persist"

// DefaultSaveTimeout bounds a single outbound save.
const DefaultSaveTimeout = 30 * time.Second

// Documents is the view of the config store the Persister needs.
type Documents interface {
	IsDirty(kind settings.Kind) bool
	Snapshot(kind settings.Kind) (settings.Snapshot, error)
	MarkSaved(kind settings.Kind, revision uint64) bool
}

// Saver sends a serialized document to the remote store.
type Saver interface {
	SaveDocument(ctx context.Context, kind settings.Kind, body json.RawMessage) error
}

// Status describes how a save request was resolved.
type Status int

const (
	StatusSkippedClean Status = iota + 1
	StatusSkippedInFlight
	StatusSaved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkippedClean:
		return "skipped_clean"
	case StatusSkippedInFlight:
		return "skipped_in_flight"
	case StatusSaved:
		return "saved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is delivered once per RequestSave call.
type Result struct {
	Kind   settings.Kind
	Status Status
	// Err is set for StatusFailed. It is informational; the document stays dirty.
	Err error
}

// Option configures a Persister.
type Option func(*Persister)

// WithSaveTimeout bounds every outbound save. Zero disables the bound.
func WithSaveTimeout(d time.Duration) Option {
	return func(p *Persister) {
		p.timeout = d
	}
}

// WithKinds overrides the document kinds handled by Flush.
func WithKinds(kinds ...settings.Kind) Option {
	return func(p *Persister) {
		p.kinds = kinds
	}
}

// Persister collapses save requests so each document kind has at most one
// outbound save in flight.
type Persister struct {
	docs    Documents
	saver   Saver
	timeout time.Duration
	kinds   []settings.Kind
	tracer  trace.Tracer

	mu     sync.Mutex
	saving map[settings.Kind]bool
	wg     sync.WaitGroup
}

// New creates a Persister sending documents from docs through saver.
func New(docs Documents, saver Saver, opts ...Option) *Persister {
	p := &Persister{
		docs:    docs,
		saver:   saver,
		timeout: DefaultSaveTimeout,
		kinds:   settings.Kinds(),
		tracer:  otel.Tracer(tracerName),
		saving:  make(map[settings.Kind]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestSave sends the document of the given kind unless it is clean (and
// force is false) or a save for it is already in flight. The document is
// snapshotted before RequestSave returns; the send happens in the background.
// The returned channel receives exactly one Result and is then closed.
func (p *Persister) RequestSave(ctx context.Context, kind settings.Kind, force bool) <-chan Result {
	done := make(chan Result, 1)

	if !force && !p.docs.IsDirty(kind) {
		p.resolve(done, Result{Kind: kind, Status: StatusSkippedClean})
		return done
	}

	if !p.acquire(kind) {
		p.resolve(done, Result{Kind: kind, Status: StatusSkippedInFlight})
		return done
	}

	snap, err := p.docs.Snapshot(kind)
	if err != nil {
		p.release(kind)
		slog.ErrorContext(ctx, "failed to snapshot document", "document", kind, "error", err)
		p.resolve(done, Result{Kind: kind, Status: StatusFailed, Err: err})
		return done
	}

	go p.send(ctx, snap, done)
	return done
}

// Save is the blocking form of RequestSave.
func (p *Persister) Save(ctx context.Context, kind settings.Kind, force bool) Result {
	return <-p.RequestSave(ctx, kind, force)
}

// Saving reports whether a save for kind is in flight.
func (p *Persister) Saving(kind settings.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saving[kind]
}

// Wait blocks until every in-flight save has completed.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// Flush requests a non-forced save for every kind and waits for the outcome,
// retrying kinds that were busy or changed while their save was in flight.
// Failed saves are reported in the returned error.
func (p *Persister) Flush(ctx context.Context) error {
	const maxRounds = 3

	failed := map[settings.Kind]error{}
	for range maxRounds {
		chans := make([]<-chan Result, 0, len(p.kinds))
		for _, kind := range p.kinds {
			if _, ok := failed[kind]; ok {
				continue
			}
			chans = append(chans, p.RequestSave(ctx, kind, false))
		}
		for _, ch := range chans {
			if res := <-ch; res.Status == StatusFailed {
				failed[res.Kind] = res.Err
			}
		}
		p.Wait()

		pending := false
		for _, kind := range p.kinds {
			if _, ok := failed[kind]; !ok && p.docs.IsDirty(kind) {
				pending = true
			}
		}
		if !pending || ctx.Err() != nil {
			break
		}
	}

	errs := make([]error, 0, len(failed))
	for _, kind := range p.kinds {
		if err, ok := failed[kind]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Persister) acquire(kind settings.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.saving[kind] {
		return false
	}
	p.saving[kind] = true
	p.wg.Add(1)
	return true
}

func (p *Persister) release(kind settings.Kind) {
	p.mu.Lock()
	p.saving[kind] = false
	p.mu.Unlock()
	p.wg.Done()
}

func (p *Persister) resolve(done chan<- Result, res Result) {
	metrics.PersistSavesTotal.WithLabelValues(string(res.Kind), res.Status.String()).Inc()
	done <- res
	close(done)
}

// send is detached from the requester's cancellation; only the save timeout
// bounds it.
func (p *Persister) send(ctx context.Context, snap settings.Snapshot, done chan<- Result) {
	ctx, span := p.tracer.Start(context.WithoutCancel(ctx), "persist.save", trace.WithAttributes(
		attribute.String("document", string(snap.Kind)),
		attribute.Int64("revision", int64(snap.Revision)),
	))
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.saver.SaveDocument(ctx, snap.Kind, snap.Body)
	metrics.PersistSaveDuration.WithLabelValues(string(snap.Kind)).Observe(time.Since(start).Seconds())

	res := Result{Kind: snap.Kind, Status: StatusSaved}
	if err != nil {
		// Dirty flag stays set so the next request retries.
		slog.WarnContext(ctx, "document save failed", "document", snap.Kind, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		res = Result{Kind: snap.Kind, Status: StatusFailed, Err: err}
	} else if !p.docs.MarkSaved(snap.Kind, snap.Revision) {
		slog.DebugContext(ctx, "document changed during save, keeping it dirty", "document", snap.Kind)
	}

	// Back to idle before signalling, so a follow-up request is accepted.
	p.release(snap.Kind)
	p.resolve(done, res)
}
