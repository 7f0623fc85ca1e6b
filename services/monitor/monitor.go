package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/internal/engine"
	redisstore "github.com/shopfloor/floorstate/internal/redis"
	"github.com/shopfloor/floorstate/pkg/retry"
	"github.com/shopfloor/floorstate/pkg/telemetry"
)

// Well-known view names. Each view runs its own refresh loop at its own
// interval; different views are not required to be mutually consistent at the
// same instant.
const (
	ViewStages      = "stages"
	ViewMachines    = "machines"
	ViewBottlenecks = "bottlenecks"
)

// View is one independently refreshed slice of the floor picture.
type View struct {
	Name     string
	Interval time.Duration
	// Window bounds the open-batch fetch.
	Window time.Duration
}

// DefaultViews returns the stock view set. Intervals mirror how fast each
// surface needs to feel: stage WIP is watched closely, bottleneck ranking can
// lag.
func DefaultViews() []View {
	return []View{
		{Name: ViewStages, Interval: 5 * time.Second, Window: 30 * 24 * time.Hour},
		{Name: ViewMachines, Interval: 10 * time.Second, Window: 30 * 24 * time.Hour},
		{Name: ViewBottlenecks, Interval: 30 * time.Second, Window: 30 * 24 * time.Hour},
	}
}

// Published wraps one immutable snapshot with its staleness indicator. When a
// cycle's fetch fails the previous snapshot is republished with Degraded set;
// consumers never see a half-populated snapshot.
type Published struct {
	Snapshot    *domain.Snapshot `json:"snapshot"`
	Degraded    bool             `json:"degraded"`
	LastSuccess time.Time        `json:"last_success"`

	seq uint64
}

// Staleness is the per-view freshness indicator exposed alongside every read.
type Staleness struct {
	LastSuccess time.Time `json:"last_success"`
	Degraded    bool      `json:"degraded"`
}

// slot is one view's snapshot holder: a single writer (the view's refresh
// loop) swaps the pointer, arbitrarily many readers load it without locking.
type slot struct {
	cur atomic.Pointer[Published]
	seq atomic.Uint64
}

// Monitor owns the per-view refresh loops and the published snapshot slots.
type Monitor struct {
	src    engine.FactSource
	cfg    engine.Config
	views  []View
	slots  map[string]*slot
	logger *slog.Logger

	cache  redisstore.SnapshotCache // optional
	alerts *AlertPublisher          // optional
	shift  cron.Schedule            // optional; midnight UTC when nil

	fetchAttempts  int
	fetchBaseDelay time.Duration

	wg sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithViews(v []View) Option        { return func(m *Monitor) { m.views = v } }
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.logger = l } }

// WithSnapshotCache mirrors every published snapshot into Redis for sibling
// replicas.
func WithSnapshotCache(c redisstore.SnapshotCache) Option {
	return func(m *Monitor) { m.cache = c }
}

// WithAlerts publishes machine and bottleneck transitions between consecutive
// snapshots.
func WithAlerts(a *AlertPublisher) Option { return func(m *Monitor) { m.alerts = a } }

// WithShiftSchedule sets the production day boundary used for "today" sums.
func WithShiftSchedule(s cron.Schedule) Option { return func(m *Monitor) { m.shift = s } }

func WithFetchAttempts(n int) Option            { return func(m *Monitor) { m.fetchAttempts = n } }
func WithFetchBaseDelay(d time.Duration) Option { return func(m *Monitor) { m.fetchBaseDelay = d } }

// NewMonitor constructs a Monitor over the given fact source.
func NewMonitor(src engine.FactSource, cfg engine.Config, opts ...Option) *Monitor {
	m := &Monitor{
		src:            src,
		cfg:            cfg,
		views:          DefaultViews(),
		logger:         slog.Default(),
		fetchAttempts:  3,
		fetchBaseDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.slots = make(map[string]*slot, len(m.views))
	for _, v := range m.views {
		m.slots[v.Name] = &slot{}
	}
	return m
}

// Run starts one refresh loop per view and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for _, v := range m.views {
		m.wg.Add(1)
		go func(v View) {
			defer m.wg.Done()
			m.loop(ctx, v)
		}(v)
	}
	<-ctx.Done()
	m.wg.Wait()
}

// loop ticks one view. The first refresh happens immediately; refreshes are
// synchronous within the loop, so a slow cycle simply drops ticks rather than
// piling up concurrent fetches.
func (m *Monitor) loop(ctx context.Context, v View) {
	ticker := time.NewTicker(v.Interval)
	defer ticker.Stop()

	m.RefreshView(ctx, v)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshView(ctx, v)
		}
	}
}

// RefreshView runs one full fetch-and-derive cycle for a view and publishes
// the result. Exported so callers can force a cycle outside the timer.
func (m *Monitor) RefreshView(ctx context.Context, v View) {
	s, ok := m.slots[v.Name]
	if !ok {
		return
	}
	seq := s.seq.Add(1)

	ctx, span := otel.Tracer("monitor").Start(ctx, "monitor.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("view", v.Name))

	start := time.Now()
	now := start.UTC()
	dayStart := shiftStart(m.shift, now)

	var facts *engine.FactSet
	fetchErr := retry.Do(ctx, retry.Config{
		MaxAttempts: m.fetchAttempts,
		BaseDelay:   m.fetchBaseDelay,
		MaxDelay:    5 * time.Second,
		OnRetry: func(attempt int, err error) {
			telemetry.FetchRetriesTotal.WithLabelValues(v.Name).Inc()
			m.logger.Warn("fact fetch failed, retrying",
				slog.String("view", v.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}, func() error {
		f, err := engine.Collect(ctx, m.src, v.Window, dayStart)
		if err != nil {
			return err
		}
		facts = f
		return nil
	})

	telemetry.RefreshDurationSeconds.WithLabelValues(v.Name).Observe(time.Since(start).Seconds())

	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "fact fetch failed")
		m.markDegraded(v.Name, s, seq, fetchErr)
		return
	}

	snap := engine.BuildSnapshot(facts, now, dayStart, m.cfg, m.logger)
	pub := &Published{Snapshot: snap, LastSuccess: snap.GeneratedAt, seq: seq}

	prev, stored := s.publish(pub)
	if !stored {
		// A newer cycle already published; this result is stale and must
		// never overwrite it.
		telemetry.RefreshTotal.WithLabelValues(v.Name, "discarded").Inc()
		return
	}

	telemetry.RefreshTotal.WithLabelValues(v.Name, "ok").Inc()
	telemetry.SnapshotDegraded.WithLabelValues(v.Name).Set(0)
	if v.Name == ViewMachines {
		recordReadinessGauge(snap)
	}

	m.mirrorToCache(ctx, v.Name, pub)

	if m.alerts != nil && v.Name == ViewMachines {
		var prevSnap *domain.Snapshot
		if prev != nil {
			prevSnap = prev.Snapshot
		}
		m.alerts.PublishTransitions(ctx, prevSnap, snap)
	}
}

// publish swaps the slot pointer unless a newer cycle got there first.
// Returns the previous value and whether the swap happened.
func (s *slot) publish(pub *Published) (*Published, bool) {
	for {
		cur := s.cur.Load()
		if cur != nil && cur.seq > pub.seq {
			return cur, false
		}
		if s.cur.CompareAndSwap(cur, pub) {
			return cur, true
		}
	}
}

// markDegraded keeps serving the last good snapshot, flagged stale. With no
// prior snapshot there is nothing to serve and the view stays empty.
func (m *Monitor) markDegraded(view string, s *slot, seq uint64, cause error) {
	telemetry.RefreshTotal.WithLabelValues(view, "degraded").Inc()
	telemetry.SnapshotDegraded.WithLabelValues(view).Set(1)
	m.logger.Error("refresh failed, serving last good snapshot",
		slog.String("view", view),
		slog.String("error", cause.Error()),
	)

	cur := s.cur.Load()
	if cur == nil {
		return
	}
	repub := &Published{
		Snapshot:    cur.Snapshot,
		Degraded:    true,
		LastSuccess: cur.LastSuccess,
		seq:         seq,
	}
	s.publish(repub)
}

func (m *Monitor) mirrorToCache(ctx context.Context, view string, pub *Published) {
	if m.cache == nil {
		return
	}
	payload, err := encodePublished(pub)
	if err != nil {
		m.logger.Error("encode snapshot for cache", slog.String("error", err.Error()))
		return
	}
	// Best effort: a cache miss only costs sibling replicas a fallback read.
	if err := m.cache.Put(ctx, view, payload, 0); err != nil {
		m.logger.Warn("mirror snapshot to cache",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
	}
}

func encodePublished(pub *Published) ([]byte, error) {
	return json.Marshal(pub)
}

func recordReadinessGauge(snap *domain.Snapshot) {
	counts := map[domain.Readiness]int{}
	for _, ms := range snap.Machines {
		counts[ms.Readiness]++
	}
	for _, r := range []domain.Readiness{
		domain.ReadinessReady, domain.ReadinessRunning, domain.ReadinessSetupRequired,
		domain.ReadinessMaintenanceDue, domain.ReadinessDown, domain.ReadinessQCBlocked,
	} {
		telemetry.MachinesByReadiness.WithLabelValues(string(r)).Set(float64(counts[r]))
	}
}

// Published returns the current published value for a view.
func (m *Monitor) Published(view string) (*Published, error) {
	s, ok := m.slots[view]
	if !ok {
		return nil, &domain.SnapshotNotFoundError{View: view}
	}
	pub := s.cur.Load()
	if pub == nil {
		return nil, &domain.SnapshotNotFoundError{View: view}
	}
	return pub, nil
}

func (pub *Published) staleness() Staleness {
	return Staleness{LastSuccess: pub.LastSuccess, Degraded: pub.Degraded}
}

// StageMetrics returns the fixed-order stage metrics from the stages view.
func (m *Monitor) StageMetrics() ([]domain.StageMetric, Staleness, error) {
	pub, err := m.Published(ViewStages)
	if err != nil {
		return nil, Staleness{}, err
	}
	return pub.Snapshot.Stages, pub.staleness(), nil
}

// MachineStates returns the derived machine states from the machines view.
func (m *Monitor) MachineStates() ([]domain.MachineState, Staleness, error) {
	pub, err := m.Published(ViewMachines)
	if err != nil {
		return nil, Staleness{}, err
	}
	return pub.Snapshot.Machines, pub.staleness(), nil
}

// Bottlenecks returns the top-ranked contention points from the bottlenecks
// view.
func (m *Monitor) Bottlenecks() ([]domain.BottleneckEntry, Staleness, error) {
	pub, err := m.Published(ViewBottlenecks)
	if err != nil {
		return nil, Staleness{}, err
	}
	return pub.Snapshot.Bottlenecks, pub.staleness(), nil
}
