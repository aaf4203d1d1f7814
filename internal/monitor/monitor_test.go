package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lpMonitor/internal/automation"
	"lpMonitor/internal/fees"
	"lpMonitor/internal/model"
	"lpMonitor/internal/pricemath"
)

type fakeReader struct {
	mu       sync.Mutex
	ticks    map[string]int32
	fees1    map[string]uint64
	errs     map[string]error
	drained  map[string]bool
	panicsOn string
	calls    map[string]int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		ticks: map[string]int32{},
		fees1: map[string]uint64{},
		errs:    map[string]error{},
		drained: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (r *fakeReader) Read(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[cfg.ID]++
	if cfg.ID == r.panicsOn {
		panic("decoder blew up")
	}
	if err := r.errs[cfg.ID]; err != nil {
		return model.RawPoolReading{}, err
	}
	tick := r.ticks[cfg.ID]
	sqrt, err := pricemath.SqrtRatioAtTick(tick)
	if err != nil {
		return model.RawPoolReading{}, err
	}
	fee1 := new(uint256.Int).Mul(uint256.NewInt(r.fees1[cfg.ID]), uint256.NewInt(1_000_000_000_000_000_000))
	liquidity := uint256.NewInt(1_000_000)
	if r.drained[cfg.ID] {
		liquidity = new(uint256.Int)
	}
	return model.RawPoolReading{
		Tick:              tick,
		SqrtPriceX96:      sqrt,
		PoolLiquidity:     uint256.NewInt(1_000_000),
		PositionLiquidity: liquidity,
		Collect:           &model.CollectAmounts{Amount0: new(uint256.Int), Amount1: fee1},
		ReadAt:            time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	started    int
	outOfRange []model.RangeEvent
	backIn     []model.RangeEvent
	actions    []model.ActionResult
	rebalances []model.RebalanceSignal
	errors     []string
	fail       error
}

func (n *fakeNotifier) MonitorStarted(ctx context.Context, positions int, interval time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
	return n.fail
}

func (n *fakeNotifier) OutOfRange(ctx context.Context, event model.RangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outOfRange = append(n.outOfRange, event)
	return n.fail
}

func (n *fakeNotifier) BackInRange(ctx context.Context, event model.RangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.backIn = append(n.backIn, event)
	return n.fail
}

func (n *fakeNotifier) ActionCompleted(ctx context.Context, result model.ActionResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, result)
	return n.fail
}

func (n *fakeNotifier) RebalanceNeeded(ctx context.Context, signal model.RebalanceSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rebalances = append(n.rebalances, signal)
	return n.fail
}

func (n *fakeNotifier) Error(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return n.fail
}

type fakeWriter struct {
	claims    int
	writes    []string
	decreased []uint64
}

func (w *fakeWriter) ClaimFees(ctx context.Context, cfg *model.PositionConfig) (fees.Amounts, string, error) {
	w.claims++
	w.writes = append(w.writes, "claim")
	return fees.Amounts{Amount0: new(uint256.Int), Amount1: uint256.NewInt(5)}, "0xclaim", nil
}

func (w *fakeWriter) IncreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, amount0, amount1 *uint256.Int) (string, error) {
	w.writes = append(w.writes, "increase")
	return "0xincrease", nil
}

func (w *fakeWriter) DecreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, liquidity *uint256.Int) (fees.Amounts, string, error) {
	w.writes = append(w.writes, "decrease")
	w.decreased = append(w.decreased, liquidity.Uint64())
	return fees.ZeroAmounts(), "0xdecrease", nil
}

type recordingSink struct {
	batches [][]model.Snapshot
	actions []model.ActionResult
	err     error
}

func (s *recordingSink) PutSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	s.batches = append(s.batches, snaps)
	return s.err
}

func (s *recordingSink) PutAction(ctx context.Context, result model.ActionResult) error {
	s.actions = append(s.actions, result)
	return s.err
}

func position(id string) *model.PositionConfig {
	return &model.PositionConfig{
		ID:             id,
		Name:           id + " pool",
		Protocol:       model.ProtocolV3,
		Token0Decimals: 18,
		Token1Decimals: 18,
		TickLower:      -600,
		TickUpper:      600,
		V3: &model.V3Ref{
			PoolAddress:     common.HexToAddress("0x01"),
			NFTID:           big.NewInt(1),
			PositionManager: common.HexToAddress("0x02"),
		},
		Analytics: &model.AnalyticsConfig{
			ReferenceToken:    model.ReferenceToken1,
			ReferencePriceUSD: 1,
		},
	}
}

func TestCheckOnceIsolatesFailures(t *testing.T) {
	reader := newFakeReader()
	reader.errs["b"] = model.NewTransportError("eth_call", errors.New("timeout"))
	notifier := &fakeNotifier{}
	sink := &recordingSink{}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{position("a"), position("b"), position("c")},
		Deps{Reader: reader, Notifier: notifier, Sink: sink}, nil)

	result := m.CheckOnce(context.Background())
	require.Len(t, result.Snapshots, 2)
	assert.Equal(t, []string{"b"}, result.Failed)
	assert.Equal(t, 2, result.InRange)
	assert.Equal(t, 1, reader.calls["c"], "positions after a failure still run")

	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 2)

	// The failed position has no recorded state, so its first good read
	// is treated as an initial observation.
	reader.errs["b"] = nil
	reader.ticks["b"] = 1000
	m.CheckOnce(context.Background())
	require.Len(t, notifier.outOfRange, 1)
	assert.Equal(t, model.EventInitialOutOfRange, notifier.outOfRange[0].Kind)
	assert.Equal(t, "b", notifier.outOfRange[0].PositionID)
}

func TestErrorAlertAfterConsecutiveFailures(t *testing.T) {
	reader := newFakeReader()
	reader.errs["a"] = errors.New("rpc down")
	notifier := &fakeNotifier{}

	m := NewMonitor(Config{Interval: time.Minute, ErrorAlertAfter: 3}, []*model.PositionConfig{position("a")},
		Deps{Reader: reader, Notifier: notifier}, nil)

	for i := 0; i < 2; i++ {
		m.CheckOnce(context.Background())
	}
	assert.Empty(t, notifier.errors)

	m.CheckOnce(context.Background())
	require.Len(t, notifier.errors, 1)
	assert.Contains(t, notifier.errors[0], "failed 3 checks in a row")

	m.CheckOnce(context.Background())
	assert.Len(t, notifier.errors, 1, "alert fires once per streak")

	reader.errs["a"] = nil
	m.CheckOnce(context.Background())
	reader.errs["a"] = errors.New("rpc down again")
	for i := 0; i < 3; i++ {
		m.CheckOnce(context.Background())
	}
	assert.Len(t, notifier.errors, 2, "success resets the streak")
}

func TestRangeEventsDispatch(t *testing.T) {
	reader := newFakeReader()
	notifier := &fakeNotifier{}
	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{position("a")},
		Deps{Reader: reader, Notifier: notifier}, nil)

	ctx := context.Background()
	m.CheckOnce(ctx)
	assert.Empty(t, notifier.outOfRange, "initial in-range is silent")

	reader.ticks["a"] = 700
	m.CheckOnce(ctx)
	m.CheckOnce(ctx)
	require.Len(t, notifier.outOfRange, 1)
	assert.Equal(t, model.EventOutOfRange, notifier.outOfRange[0].Kind)

	reader.ticks["a"] = 600
	m.CheckOnce(ctx)
	require.Len(t, notifier.backIn, 1, "upper bound is inclusive")
	assert.Equal(t, model.EventBackInRange, notifier.backIn[0].Kind)
}

func TestClaimDispatch(t *testing.T) {
	reader := newFakeReader()
	reader.fees1["a"] = 5
	notifier := &fakeNotifier{}
	sink := &recordingSink{}
	writer := &fakeWriter{}

	cfg := position("a")
	cfg.Automation = model.AutomationConfig{Enabled: true, AutoClaim: true, MinFeeToClaimUSD: 1}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{cfg}, Deps{
		Reader:   reader,
		Notifier: notifier,
		Executor: automation.NewExecutor(writer, nil, nil),
		Actions:  sink,
	}, nil)

	m.CheckOnce(context.Background())
	assert.Equal(t, 1, writer.claims)
	require.Len(t, notifier.actions, 1)
	assert.Equal(t, model.ActionClaim, notifier.actions[0].Action)
	assert.Equal(t, "0xclaim", notifier.actions[0].TxRef)
	require.Len(t, sink.actions, 1)
}

func TestRebalanceSignal(t *testing.T) {
	reader := newFakeReader()
	reader.ticks["a"] = 5000
	notifier := &fakeNotifier{}

	cfg := position("a")
	cfg.Automation = model.AutomationConfig{Enabled: true, AutoRebalance: true, RebalanceThresholdPercent: 5}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{cfg}, Deps{Reader: reader, Notifier: notifier}, nil)
	m.CheckOnce(context.Background())

	require.Len(t, notifier.rebalances, 1)
	assert.Equal(t, 5.0, notifier.rebalances[0].ThresholdPercent)
	assert.Greater(t, notifier.rebalances[0].DeviationPercent, 5.0)
}

func TestRebalanceClaimsInsteadOfCompounding(t *testing.T) {
	reader := newFakeReader()
	reader.ticks["a"] = 5000
	reader.fees1["a"] = 5
	notifier := &fakeNotifier{}
	writer := &fakeWriter{}

	cfg := position("a")
	cfg.Automation = model.AutomationConfig{
		Enabled:                   true,
		AutoCompound:              true,
		AutoRebalance:             true,
		MinFeeToClaimUSD:          1,
		RebalanceThresholdPercent: 5,
	}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{cfg}, Deps{
		Reader:   reader,
		Notifier: notifier,
		Executor: automation.NewExecutor(writer, automation.WithdrawStrategy{}, nil),
	}, nil)
	m.CheckOnce(context.Background())

	assert.Equal(t, []string{"claim", "decrease", "claim"}, writer.writes)
	assert.Equal(t, []uint64{1_000_000}, writer.decreased)
	require.Len(t, notifier.actions, 1)
	assert.Equal(t, model.ActionClaim, notifier.actions[0].Action)
}

func TestDrainedPositionIsNotRebalanced(t *testing.T) {
	reader := newFakeReader()
	reader.ticks["a"] = 5000
	reader.drained["a"] = true
	notifier := &fakeNotifier{}
	writer := &fakeWriter{}
	core, logs := observer.New(zap.InfoLevel)

	cfg := position("a")
	cfg.Automation = model.AutomationConfig{Enabled: true, AutoRebalance: true, RebalanceThresholdPercent: 5}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{cfg}, Deps{
		Reader:   reader,
		Notifier: notifier,
		Executor: automation.NewExecutor(writer, automation.WithdrawStrategy{}, nil),
	}, zap.New(core))
	for i := 0; i < 3; i++ {
		m.CheckOnce(context.Background())
	}

	assert.Empty(t, notifier.rebalances)
	assert.Empty(t, writer.writes)
	assert.Equal(t, 0, logs.FilterMessage("rebalance strategy executed").Len())
}

func TestPanicIsContained(t *testing.T) {
	reader := newFakeReader()
	reader.panicsOn = "a"
	core, logs := observer.New(zap.ErrorLevel)

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{position("a"), position("b")},
		Deps{Reader: reader, Notifier: &fakeNotifier{}}, zap.New(core))

	result := m.CheckOnce(context.Background())
	assert.Equal(t, []string{"a"}, result.Failed)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, "b", result.Snapshots[0].PositionID)
	assert.Equal(t, 1, logs.FilterMessage("position check panicked").Len())
}

func TestNotifierErrorsAreSwallowed(t *testing.T) {
	reader := newFakeReader()
	reader.ticks["a"] = 1000
	notifier := &fakeNotifier{fail: errors.New("telegram down")}
	sink := &recordingSink{err: errors.New("disk full")}

	m := NewMonitor(Config{Interval: time.Minute}, []*model.PositionConfig{position("a")},
		Deps{Reader: reader, Notifier: notifier, Sink: sink}, nil)

	result := m.CheckOnce(context.Background())
	assert.Empty(t, result.Failed)
	assert.Len(t, notifier.outOfRange, 1)
}

func TestRunChecksImmediatelyAndStops(t *testing.T) {
	reader := newFakeReader()
	notifier := &fakeNotifier{}
	m := NewMonitor(Config{Interval: time.Hour}, []*model.PositionConfig{position("a")},
		Deps{Reader: reader, Notifier: notifier}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return reader.calls["a"] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on cancel")
	}
	assert.Equal(t, 1, notifier.started)
}

func TestRunValidates(t *testing.T) {
	m := NewMonitor(Config{Interval: time.Minute}, nil, Deps{Reader: newFakeReader()}, nil)
	require.Error(t, m.Run(context.Background()))

	m = NewMonitor(Config{}, []*model.PositionConfig{position("a")}, Deps{Reader: newFakeReader()}, nil)
	require.Error(t, m.Run(context.Background()))
}
