package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpMonitor/internal/automation"
	"lpMonitor/internal/model"
	"lpMonitor/internal/notify"
	"lpMonitor/internal/rangestate"
	"lpMonitor/internal/snapshot"
	"lpMonitor/internal/storage"
)

// PositionReader fetches the chain reading for one position.
type PositionReader interface {
	Read(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error)
}

// Config holds runtime settings for the monitor loop.
type Config struct {
	Interval time.Duration
	// ErrorAlertAfter is the number of consecutive failures of one position
	// before an error alert is sent. Zero disables the alert.
	ErrorAlertAfter int
}

// Deps are the collaborators the monitor drives. Only Reader is required.
type Deps struct {
	Reader   PositionReader
	Builder  *snapshot.Builder
	Tracker  *rangestate.Tracker
	Executor *automation.Executor
	Notifier notify.Notifier
	Sink     storage.SnapshotSink
	Actions  storage.ActionSink
}

// CycleResult summarizes one pass over every position.
type CycleResult struct {
	Snapshots     []model.Snapshot
	Failed        []string
	InRange       int
	TotalValueUSD decimal.Decimal
	TotalFeesUSD  decimal.Decimal
}

// Monitor checks every position sequentially, once per interval.
type Monitor struct {
	cfg       Config
	positions []*model.PositionConfig
	deps      Deps
	logger    *zap.Logger
	failures  map[string]int
}

// NewMonitor builds a Monitor with its dependencies.
func NewMonitor(cfg Config, positions []*model.PositionConfig, deps Deps, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Builder == nil {
		deps.Builder = snapshot.NewBuilder(nil, logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = rangestate.NewTracker(nil)
	}
	if deps.Executor == nil {
		deps.Executor = automation.NewExecutor(nil, nil, logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(logger)
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		deps:      deps,
		logger:    logger,
		failures:  make(map[string]int),
	}
}

// Run sends the start notification, checks immediately and then schedules
// each next cycle one interval after the previous one returned. It returns
// nil when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if m.deps.Reader == nil {
		return fmt.Errorf("position reader is nil")
	}
	if len(m.positions) == 0 {
		return fmt.Errorf("no positions configured")
	}
	if m.cfg.Interval <= 0 {
		return fmt.Errorf("check interval must be greater than zero")
	}

	m.logger.Info("monitor start",
		zap.Int("positions", len(m.positions)),
		zap.Duration("interval", m.cfg.Interval),
		zap.Bool("dry_run", m.deps.Executor.DryRun()),
	)
	if err := m.deps.Notifier.MonitorStarted(ctx, len(m.positions), m.cfg.Interval); err != nil {
		m.logger.Warn("start notification failed", zap.Error(err))
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-timer.C:
		}

		m.CheckOnce(ctx)
		timer.Reset(m.cfg.Interval)
	}
}

// CheckOnce runs one cycle over every position in order.
func (m *Monitor) CheckOnce(ctx context.Context) CycleResult {
	result := CycleResult{}
	m.logger.Info("check cycle", zap.Int("positions", len(m.positions)))

	for _, cfg := range m.positions {
		if ctx.Err() != nil {
			break
		}
		snap, err := m.checkPosition(ctx, cfg)
		if err != nil {
			result.Failed = append(result.Failed, cfg.ID)
			m.recordFailure(ctx, cfg, err)
			continue
		}
		m.failures[cfg.ID] = 0

		result.Snapshots = append(result.Snapshots, snap)
		if snap.InRange {
			result.InRange++
		}
		result.TotalValueUSD = result.TotalValueUSD.Add(snap.ValueUSD)
		result.TotalFeesUSD = result.TotalFeesUSD.Add(snap.FeesPendingUSD)
	}

	if m.deps.Sink != nil && len(result.Snapshots) > 0 {
		if err := m.deps.Sink.PutSnapshots(ctx, result.Snapshots); err != nil {
			m.logger.Error("store snapshots failed", zap.Error(err))
		}
	}

	m.logger.Info("cycle complete",
		zap.Int("checked", len(result.Snapshots)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("in_range", result.InRange),
		zap.String("total_value_usd", result.TotalValueUSD.StringFixed(2)),
		zap.String("total_fees_usd", result.TotalFeesUSD.StringFixed(2)),
	)
	return result
}

// checkPosition runs read, build, range tracking and automation for one
// position. A panic is converted into an error at this boundary.
func (m *Monitor) checkPosition(ctx context.Context, cfg *model.PositionConfig) (snap model.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("position check panicked",
				zap.String("position", cfg.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("position %s: panic: %v", cfg.ID, r)
		}
	}()

	reading, err := m.deps.Reader.Read(ctx, cfg)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read position %s: %w", cfg.ID, err)
	}
	snap, err = m.deps.Builder.Build(cfg, reading)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("build snapshot %s: %w", cfg.ID, err)
	}
	m.logSnapshot(snap)

	if event, ok := m.deps.Tracker.Observe(snap); ok {
		m.dispatchEvent(ctx, event)
	}

	decision := automation.Decide(snap, cfg.Automation)
	if decision.None() {
		return snap, nil
	}
	m.logger.Info("automation decision",
		zap.String("position", cfg.ID),
		zap.String("action", string(decision.Action)),
		zap.Bool("rebalance", decision.Rebalance),
		zap.String("reason", decision.Reason),
	)
	m.runAction(ctx, snap, decision)
	if decision.Rebalance {
		m.runRebalance(ctx, snap, cfg.Automation.RebalanceThresholdPercent)
	}
	return snap, nil
}

func (m *Monitor) dispatchEvent(ctx context.Context, event model.RangeEvent) {
	var err error
	switch event.Kind {
	case model.EventInitialOutOfRange, model.EventOutOfRange:
		m.logger.Warn("position out of range",
			zap.String("position", event.PositionID),
			zap.String("kind", string(event.Kind)),
			zap.Float64("price", event.CurrentPrice),
			zap.Float64("deviation_percent", event.DeviationPercent),
		)
		err = m.deps.Notifier.OutOfRange(ctx, event)
	case model.EventBackInRange:
		m.logger.Info("position back in range",
			zap.String("position", event.PositionID),
			zap.Float64("price", event.CurrentPrice),
		)
		err = m.deps.Notifier.BackInRange(ctx, event)
	}
	if err != nil {
		m.logger.Warn("range notification failed", zap.String("position", event.PositionID), zap.Error(err))
	}
}

func (m *Monitor) runAction(ctx context.Context, snap model.Snapshot, decision automation.Decision) {
	if decision.Action == model.ActionNone {
		return
	}
	result, err := m.deps.Executor.Execute(ctx, snap, decision)
	if result != nil {
		if nerr := m.deps.Notifier.ActionCompleted(ctx, *result); nerr != nil {
			m.logger.Warn("action notification failed", zap.String("position", snap.PositionID), zap.Error(nerr))
		}
		if m.deps.Actions != nil {
			if serr := m.deps.Actions.PutAction(ctx, *result); serr != nil {
				m.logger.Error("store action failed", zap.String("position", snap.PositionID), zap.Error(serr))
			}
		}
	}
	if err != nil {
		m.logger.Error("automation action failed",
			zap.String("position", snap.PositionID),
			zap.String("action", string(decision.Action)),
			zap.Error(err),
		)
		m.notifyError(ctx, fmt.Sprintf("%s on %s failed: %v", decision.Action, snap.Name, err))
	}
}

func (m *Monitor) runRebalance(ctx context.Context, snap model.Snapshot, threshold float64) {
	signal := model.RebalanceSignal{
		PositionID:       snap.PositionID,
		PositionName:     snap.Name,
		CurrentPrice:     snap.Price,
		DeviationPercent: snap.DeviationPercent,
		ThresholdPercent: threshold,
	}
	if err := m.deps.Notifier.RebalanceNeeded(ctx, signal); err != nil {
		m.logger.Warn("rebalance notification failed", zap.String("position", snap.PositionID), zap.Error(err))
	}
	ran, err := m.deps.Executor.Rebalance(ctx, snap)
	if err != nil {
		m.logger.Error("rebalance failed", zap.String("position", snap.PositionID), zap.Error(err))
		m.notifyError(ctx, fmt.Sprintf("rebalance of %s failed: %v", snap.Name, err))
		return
	}
	if ran {
		m.logger.Info("rebalance strategy executed", zap.String("position", snap.PositionID))
	}
}

func (m *Monitor) recordFailure(ctx context.Context, cfg *model.PositionConfig, err error) {
	m.failures[cfg.ID]++
	count := m.failures[cfg.ID]
	m.logger.Error("position check failed",
		zap.String("position", cfg.ID),
		zap.String("name", cfg.Name),
		zap.Int("consecutive_failures", count),
		zap.Bool("transport", model.IsTransport(err)),
		zap.Error(err),
	)
	if m.cfg.ErrorAlertAfter > 0 && count == m.cfg.ErrorAlertAfter {
		m.notifyError(ctx, fmt.Sprintf("%s failed %d checks in a row: %v", cfg.Name, count, err))
	}
}

func (m *Monitor) notifyError(ctx context.Context, message string) {
	if err := m.deps.Notifier.Error(ctx, message); err != nil {
		m.logger.Warn("error notification failed", zap.Error(err))
	}
}

func (m *Monitor) logSnapshot(snap model.Snapshot) {
	fields := []zap.Field{
		zap.String("position", snap.PositionID),
		zap.Int32("tick", snap.Tick),
		zap.Float64("price", snap.Price),
		zap.Bool("in_range", snap.InRange),
		zap.String("value_usd", snap.ValueUSD.StringFixed(2)),
		zap.String("fees_usd", snap.FeesPendingUSD.StringFixed(4)),
	}
	if !snap.InRange {
		fields = append(fields, zap.Float64("deviation_percent", snap.DeviationPercent))
	}
	if snap.ROI != nil {
		fields = append(fields, zap.Float64("roi_percent", *snap.ROI))
	}
	if len(snap.Degraded) > 0 {
		fields = append(fields, zap.Strings("degraded", snap.Degraded))
	}
	m.logger.Info("position snapshot", fields...)
}
