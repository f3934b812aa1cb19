// Package uow bounds one mutation against one aggregate's collection:
// transaction demarcation around a repository, event buffering during the
// callback, and dual-bus dispatch after a successful commit.
package uow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lendit/internal/events"
	"lendit/internal/platform/metrics"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

type State int

const (
	StateCreated State = iota
	StateInTransaction
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInTransaction:
		return "in-transaction"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// UnitOfWork wraps one repository instance and one store transaction. It is
// single-use: after the transaction commits or aborts, further calls fail
// with ErrInvalidState.
//
// Each unit owns a private recorder and a repository bound to it, so the
// events one operation buffers are invisible to every other operation
// running at the same time. Buffered events are dispatched to both buses
// only after commit, and dropped on abort.
type UnitOfWork[R any] struct {
	store      docstore.Store
	repo       R
	recorder   *domain.Recorder
	dispatcher *events.Dispatcher
	log        zerolog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	mu    sync.Mutex
	state State
}

// New builds a unit of work. The factory receives the unit's private
// recorder and must return a repository that drains aggregate events into
// it; sharing one recorder between units would let an abort discard, or a
// commit dispatch, another operation's buffered events.
func New[R any](
	store docstore.Store,
	factory func(recorder *domain.Recorder) R,
	dispatcher *events.Dispatcher,
	log zerolog.Logger,
	m *metrics.Metrics,
) *UnitOfWork[R] {
	recorder := domain.NewRecorder()
	return &UnitOfWork[R]{
		store:      store,
		repo:       factory(recorder),
		recorder:   recorder,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "uow").Logger(),
		metrics:    m,
		tracer:     otel.Tracer("lendit/uow"),
		state:      StateCreated,
	}
}

// State reports the lifecycle state.
func (u *UnitOfWork[R]) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// WithTransaction starts a transaction, invokes fn with the repository, and
// commits when fn returns nil. An error from fn aborts the transaction,
// discards any buffered events, and is returned unchanged. After a
// successful commit the buffered events go to both buses, best-effort.
func (u *UnitOfWork[R]) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo R) error) error {
	if err := u.enter(); err != nil {
		return err
	}
	ctx, span := u.tracer.Start(ctx, "uow.WithTransaction")
	defer span.End()

	err := u.store.WithTransaction(ctx, func(txCtx context.Context) error {
		// the store may run the callback more than once (driver-level
		// retries of transient transaction errors); each attempt starts
		// with an empty buffer so a retry cannot double-record
		u.recorder.Drain()
		return fn(txCtx, u.repo)
	})
	if err != nil {
		u.leave(StateAborted)
		u.metrics.IncTxAbort()
		u.recorder.Drain()
		span.RecordError(err)
		return err
	}
	u.leave(StateCommitted)
	u.metrics.IncTxCommit()

	buffered := u.recorder.Drain()
	if len(buffered) > 0 {
		u.log.Debug().Int("events", len(buffered)).Msg("dispatching after commit")
		u.dispatcher.DispatchAll(ctx, buffered)
	}
	return nil
}

func (u *UnitOfWork[R]) enter() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != StateCreated {
		return fmt.Errorf("unit of work already %s: %w", u.state, sentinel.ErrInvalidState)
	}
	u.state = StateInTransaction
	return nil
}

func (u *UnitOfWork[R]) leave(s State) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = s
}

// WithScopedTransaction constructs an aggregate inside the transaction and
// hands it to fn, keeping construction and mutation in one boundary.
func WithScopedTransaction[R, A any](
	ctx context.Context,
	u *UnitOfWork[R],
	construct func(ctx context.Context, repo R) (A, error),
	fn func(ctx context.Context, aggregate A) error,
) error {
	return u.WithTransaction(ctx, func(txCtx context.Context, repo R) error {
		aggregate, err := construct(txCtx, repo)
		if err != nil {
			return err
		}
		return fn(txCtx, aggregate)
	})
}

// WithScopedTransactionByID fetches an aggregate by id inside the
// transaction and hands it to fn.
func WithScopedTransactionByID[R, A any](
	ctx context.Context,
	u *UnitOfWork[R],
	id string,
	get func(ctx context.Context, repo R, id string) (A, error),
	fn func(ctx context.Context, aggregate A) error,
) error {
	return u.WithTransaction(ctx, func(txCtx context.Context, repo R) error {
		aggregate, err := get(txCtx, repo, id)
		if err != nil {
			return err
		}
		return fn(txCtx, aggregate)
	})
}
