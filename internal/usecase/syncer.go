package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ArticleDesk/internal/connector"
	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

// DefaultCooldown is the minimum gap between passive cycles of one connector.
const DefaultCooldown = 300 * time.Second

// ErrUnknownConnector is returned when a sync names no registered connector.
var ErrUnknownConnector = errors.New("unknown connector")

// Cooldown gates passive syncs to one per period.
type Cooldown struct {
	mu     sync.Mutex
	period time.Duration
	last   time.Time
}

// NewCooldown returns a gate that opens once per period.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period}
}

// Allow reports whether a sync may start at now and, if so, records it.
// Forced syncs always pass and reset the window.
func (c *Cooldown) Allow(now time.Time, force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && !c.last.IsZero() && now.Sub(c.last) < c.period {
		return false
	}
	c.last = now
	return true
}

// Last returns the start time of the most recent allowed sync.
func (c *Cooldown) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ConnectorSettings are per-connector cycle options.
type ConnectorSettings struct {
	// AutoQualify marks successfully analyzed records Qualified.
	AutoQualify bool
}

// MirrorLink attaches the remote mirror once it becomes reachable.
type MirrorLink interface {
	Ensure(ctx context.Context) error
}

// SyncerDeps wires the syncer. Notifier and Mirror are optional.
type SyncerDeps struct {
	Pipeline *Pipeline
	Registry *connector.Registry
	Notifier ports.Notifier
	Mirror   MirrorLink
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Syncer runs connector cycles one at a time, honoring cooldowns.
type Syncer struct {
	pipeline *Pipeline
	registry *connector.Registry
	notifier ports.Notifier
	mirror   MirrorLink
	logger   *slog.Logger
	now      func() time.Time

	cycleMu  sync.Mutex
	period   time.Duration
	gatesMu  sync.Mutex
	gates    map[string]*Cooldown
	settings map[string]ConnectorSettings
}

// NewSyncer builds a syncer. A non-positive cooldown uses DefaultCooldown.
func NewSyncer(deps SyncerDeps, cooldown time.Duration, settings map[string]ConnectorSettings) *Syncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	s := &Syncer{
		pipeline: deps.Pipeline,
		registry: deps.Registry,
		notifier: deps.Notifier,
		mirror:   deps.Mirror,
		logger:   deps.Logger,
		now:      deps.Clock,
		period:   cooldown,
		gates:    map[string]*Cooldown{},
		settings: settings,
	}
	if s.registry == nil {
		s.registry = connector.NewRegistry()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Connectors lists the registered connector names.
func (s *Syncer) Connectors() []string {
	return s.registry.Names()
}

// Sync runs one cycle of the named connector. Passive calls (force=false)
// are skipped inside the cooldown window, while another cycle runs, or
// when the connector has no credentials; they then return a zero report
// and nil. Forced calls wait for a running cycle and surface every error.
func (s *Syncer) Sync(ctx context.Context, name string, force bool) (CycleReport, error) {
	conn, err := s.registry.Resolve(name)
	if err != nil {
		return CycleReport{}, fmt.Errorf("%w: %s", ErrUnknownConnector, name)
	}

	if force {
		s.cycleMu.Lock()
	} else if !s.cycleMu.TryLock() {
		s.logger.Debug("sync skipped, cycle in progress", "connector", name)
		return CycleReport{Connector: name}, nil
	}
	defer s.cycleMu.Unlock()

	if !s.gate(name).Allow(s.now(), force) {
		s.logger.Debug("sync skipped, cooling down", "connector", name)
		return CycleReport{Connector: name}, nil
	}

	if s.mirror != nil {
		if err := s.mirror.Ensure(ctx); err != nil {
			s.logger.Warn("mirror still unavailable", "error", err)
		}
	}

	opts := CycleOptions{}
	if s.settings[name].AutoQualify {
		opts.AcceptStatus = domain.StatusQualified
	}

	report, err := s.pipeline.RunCycle(ctx, conn, opts)
	if err != nil {
		if !force && errors.Is(err, domain.ErrNotAuthenticated) {
			s.logger.Debug("sync skipped, connector not authenticated", "connector", name)
			return report, nil
		}
		s.logger.Error("sync failed", "connector", name, "error", err)
		return report, err
	}

	s.notify(ctx, report)
	return report, nil
}

// SyncAll runs a passive cycle for every registered connector.
func (s *Syncer) SyncAll(ctx context.Context) []CycleReport {
	var reports []CycleReport
	for _, name := range s.registry.Names() {
		if ctx.Err() != nil {
			break
		}
		report, err := s.Sync(ctx, name, false)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

func (s *Syncer) gate(name string) *Cooldown {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()

	g, ok := s.gates[name]
	if !ok {
		g = NewCooldown(s.period)
		s.gates[name] = g
	}
	return g
}

func (s *Syncer) notify(ctx context.Context, report CycleReport) {
	if s.notifier == nil || report.Analyzed == 0 {
		return
	}
	if err := s.notifier.PublishReport(ctx, FormatReport(report)); err != nil {
		s.logger.Warn("publish cycle report", "connector", report.Connector, "error", err)
	}
}

// FormatReport renders a short plain-text cycle summary.
func FormatReport(r CycleReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ArticleDesk %s sync: %d new article(s) analyzed", r.Connector, r.Analyzed)
	if r.Failed > 0 || r.TimedOut > 0 || r.Purged > 0 {
		fmt.Fprintf(&b, " (%d failed, %d timed out, %d purged)", r.Failed, r.TimedOut, r.Purged)
	}
	if r.Interrupted > 0 {
		fmt.Fprintf(&b, "; %d interrupted", r.Interrupted)
	}
	for _, item := range r.Items {
		if item.Outcome == ports.OutcomeAnalyzed {
			fmt.Fprintf(&b, "\n- %s", item.URL)
		}
	}
	return b.String()
}
