package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lpMonitor/internal/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestShortHash(t *testing.T) {
	hash := "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcd"
	if got := ShortHash(hash); got != "0x1234...abcd" {
		t.Fatalf("short hash: got %q", got)
	}
	if got := ShortHash("0xabc"); got != "0xabc" {
		t.Fatalf("short input should pass through, got %q", got)
	}
}

func TestFormatOutOfRange(t *testing.T) {
	event := model.RangeEvent{
		Kind:             model.EventOutOfRange,
		PositionName:     "ETH/USDC",
		CurrentPrice:     2100,
		LowerPrice:       1800,
		UpperPrice:       2000,
		DeviationPercent: 5,
	}
	text := FormatOutOfRange(event, fixedNow)
	for _, want := range []string{"moved out of range", "`ETH/USDC`", "`2100.00000000`", "`1800.00000000` - `2000.00000000`", "`5.00%`", "2024-03-01 12:00:00 UTC"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}

	event.Kind = model.EventInitialOutOfRange
	if !strings.Contains(FormatOutOfRange(event, fixedNow), "at startup") {
		t.Fatalf("initial event should mention startup")
	}
}

func TestFormatActionCompleted(t *testing.T) {
	result := model.ActionResult{
		Action:        model.ActionCompound,
		PositionName:  "ETH/USDC",
		Amount0:       decimal.RequireFromString("0.5"),
		Amount1:       decimal.RequireFromString("1000"),
		Symbol0:       "WETH",
		Symbol1:       "USDC",
		TxRef:         "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcd",
		IncreaseTxRef: "0xfeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeed0001",
	}
	text := FormatActionCompleted(result, fixedNow)
	for _, want := range []string{"Automatic compound executed", "• 0.5 WETH", "• 1000 USDC", "`0x1234...abcd`", "`0xfeed...0001`"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}

	result.Action = model.ActionClaim
	result.TxRef = ""
	result.IncreaseTxRef = ""
	text = FormatActionCompleted(result, fixedNow)
	if !strings.Contains(text, "Automatic claim executed") || strings.Contains(text, "Tx:") {
		t.Fatalf("unexpected claim message:\n%s", text)
	}
}

func TestCodeSpanEscapesBackticks(t *testing.T) {
	if got := code("a`b"); got != "`a'b`" {
		t.Fatalf("code span: got %q", got)
	}
}

func TestTelegramSendsMarkdown(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramWithSender(sender, 42, nil)
	n.now = func() time.Time { return fixedNow }

	if err := n.BackInRange(context.Background(), model.RangeEvent{PositionName: "P", CurrentPrice: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Fatalf("unexpected message config: chat=%d mode=%q", msg.ChatID, msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "back in range") {
		t.Fatalf("unexpected text: %s", msg.Text)
	}
}

func TestTelegramErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	n := NewTelegramWithSender(sender, 1, nil)
	if err := n.Error(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected send error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := &fakeSender{}
	if err := NewTelegramWithSender(ok, 1, nil).Error(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if len(ok.sent) != 0 {
		t.Fatalf("cancelled context must not send")
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if _, err := NewTelegram("", 1, nil); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := NewTelegram("token", 0, nil); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	if err := n.MonitorStarted(context.Background(), 3, 5*time.Minute); err != nil {
		t.Fatalf("log notifier: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
	msg := logs.All()[0].ContextMap()["message"].(string)
	if !strings.Contains(msg, "`3`") || !strings.Contains(msg, "5m0s") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
