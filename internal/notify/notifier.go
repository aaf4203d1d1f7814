package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lpMonitor/internal/model"
)

// Notifier delivers monitor events to a human channel. Callers log delivery
// errors and carry on.
type Notifier interface {
	MonitorStarted(ctx context.Context, positions int, interval time.Duration) error
	OutOfRange(ctx context.Context, event model.RangeEvent) error
	BackInRange(ctx context.Context, event model.RangeEvent) error
	ActionCompleted(ctx context.Context, result model.ActionResult) error
	RebalanceNeeded(ctx context.Context, signal model.RebalanceSignal) error
	Error(ctx context.Context, message string) error
}

// textSender delivers one formatted message.
type textSender interface {
	sendText(ctx context.Context, text string) error
}

// formatter implements Notifier on top of a textSender.
type formatter struct {
	sender textSender
	now    func() time.Time
}

func (f formatter) MonitorStarted(ctx context.Context, positions int, interval time.Duration) error {
	return f.sender.sendText(ctx, FormatMonitorStarted(positions, interval, f.now()))
}

func (f formatter) OutOfRange(ctx context.Context, event model.RangeEvent) error {
	return f.sender.sendText(ctx, FormatOutOfRange(event, f.now()))
}

func (f formatter) BackInRange(ctx context.Context, event model.RangeEvent) error {
	return f.sender.sendText(ctx, FormatBackInRange(event, f.now()))
}

func (f formatter) ActionCompleted(ctx context.Context, result model.ActionResult) error {
	return f.sender.sendText(ctx, FormatActionCompleted(result, f.now()))
}

func (f formatter) RebalanceNeeded(ctx context.Context, signal model.RebalanceSignal) error {
	return f.sender.sendText(ctx, FormatRebalanceNeeded(signal, f.now()))
}

func (f formatter) Error(ctx context.Context, message string) error {
	return f.sender.sendText(ctx, FormatError(message, f.now()))
}

// LogNotifier writes every message to the logger. It stands in when no
// channel is configured.
type LogNotifier struct {
	formatter
}

type logSender struct {
	logger *zap.Logger
}

func (s logSender) sendText(ctx context.Context, text string) error {
	s.logger.Info("notification (no channel configured)", zap.String("message", text))
	return nil
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{formatter{sender: logSender{logger: logger}, now: time.Now}}
}
