package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DispatchPath tags how a call site was answered.
type DispatchPath int

const (
	// PathStatic means a compiled table answered the call.
	PathStatic DispatchPath = iota

	// PathDynamic means the specificity analyzer ran at resolution time.
	PathDynamic
)

func (p DispatchPath) String() string {
	if p == PathStatic {
		return "static"
	}
	return "dynamic"
}

// siteStats aggregates one call site.
type siteStats struct {
	count    uint64
	total    time.Duration
	min, max time.Duration
	hits     uint64
}

// Profiler records per-call-site dispatch telemetry for one compilation
// session: chosen path, latency, and resolution-cache hits, aggregated into
// hotness classification and static/dynamic ratios. The same counters are
// published through an OpenTelemetry meter when one is supplied, so any
// metrics backend can consume them.
type Profiler struct {
	session      uuid.UUID
	hotThreshold uint64
	sites        map[string]*siteStats

	static    uint64
	dynamic   uint64
	failed    uint64
	ambiguous uint64

	dispatches metric.Int64Counter
	latency    metric.Float64Histogram
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithMeter publishes profiler counters through the given meter.
func WithMeter(meter metric.Meter) ProfilerOption {
	return func(p *Profiler) {
		var err error
		p.dispatches, err = meter.Int64Counter("janus.dispatch.calls",
			metric.WithDescription("dispatch resolutions by path and outcome"))
		if err != nil {
			p.dispatches = noop.Int64Counter{}
		}
		p.latency, err = meter.Float64Histogram("janus.dispatch.duration",
			metric.WithDescription("dispatch resolution latency"),
			metric.WithUnit("us"))
		if err != nil {
			p.latency = noop.Float64Histogram{}
		}
	}
}

// NewProfiler returns a profiler marking call sites hot past hotThreshold
// recorded calls.
func NewProfiler(hotThreshold int, opts ...ProfilerOption) *Profiler {
	if hotThreshold <= 0 {
		hotThreshold = DefaultHotThreshold
	}
	p := &Profiler{
		session:      uuid.New(),
		hotThreshold: uint64(hotThreshold),
		sites:        make(map[string]*siteStats),
		dispatches:   noop.Int64Counter{},
		latency:      noop.Float64Histogram{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Session returns the profiler's session identity.
func (p *Profiler) Session() uuid.UUID { return p.session }

// RecordDispatch records one resolution at a call site.
func (p *Profiler) RecordDispatch(ctx context.Context, site string, path DispatchPath, outcome ResolutionKind, d time.Duration, cacheHit bool) {
	stats, ok := p.sites[site]
	if !ok {
		stats = &siteStats{min: d}
		p.sites[site] = stats
	}
	stats.count++
	stats.total += d
	if d < stats.min {
		stats.min = d
	}
	if d > stats.max {
		stats.max = d
	}
	if cacheHit {
		stats.hits++
	}

	switch path {
	case PathStatic:
		p.static++
	case PathDynamic:
		p.dynamic++
	}
	switch outcome {
	case ResolutionNoMatch:
		p.failed++
	case ResolutionAmbiguous:
		p.ambiguous++
	}

	attrs := metric.WithAttributes(
		attribute.String("path", path.String()),
		attribute.String("outcome", outcome.String()),
		attribute.String("session", p.session.String()),
	)
	p.dispatches.Add(ctx, 1, attrs)
	p.latency.Record(ctx, float64(d)/float64(time.Microsecond), attrs)
}

// SiteSnapshot is the aggregate for one call site.
type SiteSnapshot struct {
	Site     string
	Count    uint64
	Hot      bool
	AvgNs    int64
	MinNs    int64
	MaxNs    int64
	HitRatio float64
}

// Snapshot is a plain aggregable record of the session's dispatch activity,
// consumable by any telemetry sink.
type Snapshot struct {
	Session        string
	StaticCount    uint64
	DynamicCount   uint64
	FailedCount    uint64
	AmbiguousCount uint64

	// StaticRatio is static / (static + dynamic); 1.0 when every call was
	// answered by a compiled table.
	StaticRatio float64

	Sites []SiteSnapshot
}

// Snapshot aggregates the recorded activity. Sites are sorted by descending
// call count, hottest first.
func (p *Profiler) Snapshot() Snapshot {
	snap := Snapshot{
		Session:        p.session.String(),
		StaticCount:    p.static,
		DynamicCount:   p.dynamic,
		FailedCount:    p.failed,
		AmbiguousCount: p.ambiguous,
	}
	if total := p.static + p.dynamic; total > 0 {
		snap.StaticRatio = float64(p.static) / float64(total)
	}

	for site, stats := range p.sites {
		s := SiteSnapshot{
			Site:     site,
			Count:    stats.count,
			Hot:      stats.count >= p.hotThreshold,
			MinNs:    stats.min.Nanoseconds(),
			MaxNs:    stats.max.Nanoseconds(),
			HitRatio: float64(stats.hits) / float64(stats.count),
		}
		s.AvgNs = stats.total.Nanoseconds() / int64(stats.count)
		snap.Sites = append(snap.Sites, s)
	}
	sort.Slice(snap.Sites, func(i, j int) bool {
		if snap.Sites[i].Count != snap.Sites[j].Count {
			return snap.Sites[i].Count > snap.Sites[j].Count
		}
		return snap.Sites[i].Site < snap.Sites[j].Site
	})
	return snap
}
