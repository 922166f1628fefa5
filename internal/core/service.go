package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pantry/internal/docstore"
	"pantry/pkg/domain"
)

// ChangeNotifier receives every applied change after it has been written.
type ChangeNotifier interface {
	Publish(ctx context.Context, change domain.Change) error
}

// Outcome is returned by the mutating service operations.
type Outcome struct {
	Change domain.Change `json:"change"`
	Result domain.Result `json:"result"`
	View   domain.View   `json:"view"`
}

// Service drives one pantry: validate, mutate through the inventory store,
// invalidate the snapshot, reload it and return the fresh view. Operations are
// serialized inside the process; separate processes sharing a store still race.
type Service struct {
	mu       sync.Mutex
	inv      *InventoryStore
	snapshot *Snapshot

	engine     *domain.RulesEngine
	collection string
	logger     *zap.Logger
	metrics    MetricsRecorder
	tracer     Tracer
	notifier   ChangeNotifier
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithNotifier publishes applied changes.
func WithNotifier(n ChangeNotifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRulesEngine replaces the default rules engine. Nil disables rules.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(s *Service) { s.engine = engine }
}

// WithCollection selects the document collection (default "pantry").
func WithCollection(name string) Option {
	return func(s *Service) { s.collection = name }
}

// WithClock overrides the time source used for operation latencies.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a service over store.
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		engine:     domain.NewDefaultRulesEngine(),
		collection: docstore.DefaultCollection,
		logger:     zap.NewNop(),
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		notifier:   nopNotifier{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inv = NewInventoryStore(store, s.collection, s.engine)
	s.snapshot = NewSnapshot(s.inv)
	return s
}

// NewInMemoryService returns a service on a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(docstore.NewMemory(), opts...)
}

// Inventory exposes the underlying inventory store.
func (s *Service) Inventory() *InventoryStore { return s.inv }

// Snapshot exposes the snapshot cache.
func (s *Service) Snapshot() *Snapshot { return s.snapshot }

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, domain.Change) error { return nil }

// Add merges item into the pantry.
func (s *Service) Add(ctx context.Context, item domain.Item) (Outcome, error) {
	return s.mutate(ctx, "add", item.Name, func(ctx context.Context) (domain.Change, domain.Result, error) {
		return s.inv.UpsertMerge(ctx, item)
	})
}

// Update overwrites an existing item. Unknown names are a no-op.
func (s *Service) Update(ctx context.Context, item domain.Item) (Outcome, error) {
	return s.mutate(ctx, "update", item.Name, func(ctx context.Context) (domain.Change, domain.Result, error) {
		return s.inv.UpsertReplace(ctx, item)
	})
}

// Remove takes one unit of name out of the pantry. Unknown names are a no-op.
func (s *Service) Remove(ctx context.Context, name string) (Outcome, error) {
	return s.mutate(ctx, "remove", name, func(ctx context.Context) (domain.Change, domain.Result, error) {
		return s.inv.DecrementOrDelete(ctx, name)
	})
}

// List filters the current snapshot, loading it first when invalid.
func (s *Service) List(ctx context.Context, c domain.Criteria) (view domain.View, err error) {
	ctx, done := s.observe(ctx, "list", "")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	wasValid := s.snapshot.Valid()
	items, err := s.snapshot.Items(ctx)
	if err != nil {
		s.logger.Error("load snapshot", zap.Error(err))
		return domain.View{}, err
	}
	if !wasValid {
		s.recordSize(len(items))
	}
	return Filter(items, c), nil
}

// Refresh discards the snapshot and reloads it from the store.
func (s *Service) Refresh(ctx context.Context) (view domain.View, err error) {
	ctx, done := s.observe(ctx, "refresh", "")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

// Get reads one item straight from the store.
func (s *Service) Get(ctx context.Context, name string) (item domain.Item, ok bool, err error) {
	ctx, done := s.observe(ctx, "get", name)
	defer func() { done(err) }()
	return s.inv.Get(ctx, name)
}

func (s *Service) mutate(ctx context.Context, op, name string, fn func(context.Context) (domain.Change, domain.Result, error)) (out Outcome, err error) {
	ctx, done := s.observe(ctx, op, name)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	change, res, err := fn(ctx)
	out.Result = res
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		out.Result = verr.Result
	}
	if err != nil {
		s.logFailure(op, name, out.Result, err)
		return out, err
	}
	out.Change = change
	for _, w := range res.Warnings() {
		s.logger.Warn("rule warning",
			zap.String("operation", op),
			zap.String("item", name),
			zap.String("rule", w.Rule),
			zap.String("message", w.Message))
	}
	if change.Action == domain.ActionNone {
		s.logger.Info("no stored item", zap.String("operation", op), zap.String("item", name))
	} else {
		s.snapshot.Invalidate()
		s.logger.Info("pantry change",
			zap.String("operation", op),
			zap.String("item", name),
			zap.String("action", string(change.Action)))
		if perr := s.notifier.Publish(ctx, change); perr != nil {
			s.logger.Warn("publish change", zap.String("item", name), zap.Error(perr))
		}
	}
	view, err := s.reloadLocked(ctx)
	if err != nil {
		return out, err
	}
	out.View = view
	return out, nil
}

func (s *Service) reloadLocked(ctx context.Context) (domain.View, error) {
	items, err := s.snapshot.Load(ctx)
	if err != nil {
		s.logger.Error("reload snapshot", zap.Error(err))
		return domain.View{}, err
	}
	s.recordSize(len(items))
	return Filter(items, domain.Criteria{}), nil
}

func (s *Service) logFailure(op, name string, res domain.Result, err error) {
	fields := []zap.Field{zap.String("operation", op), zap.String("item", name), zap.Error(err)}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		s.logger.Info("rejected input", append(fields, zap.Int("violations", len(res.Violations)))...)
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("store unavailable", fields...)
	default:
		s.logger.Error("operation failed", fields...)
	}
}

func (s *Service) observe(ctx context.Context, op, item string) (context.Context, func(error)) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op, item)
	return ctx, func(err error) {
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	}
}

type snapshotSizer interface {
	SetItems(n int)
}

func (s *Service) recordSize(n int) {
	if sizer, ok := s.metrics.(snapshotSizer); ok {
		sizer.SetItems(n)
	}
}
