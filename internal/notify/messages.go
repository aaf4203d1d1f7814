package notify

import (
	"fmt"
	"strings"
	"time"

	"lpMonitor/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// code wraps a value in a Markdown code span.
func code(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "'") + "`"
}

func price(v float64) string {
	return fmt.Sprintf("%.8f", v)
}

// ShortHash renders 0x1234...abcd for long transaction hashes.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-4:]
}

func FormatMonitorStarted(positions int, interval time.Duration, now time.Time) string {
	var b strings.Builder
	b.WriteString("🤖 *LP monitor started*\n\n")
	fmt.Fprintf(&b, "📊 Positions: %s\n", code(fmt.Sprintf("%d", positions)))
	fmt.Fprintf(&b, "⏱️ Check interval: %s\n\n", interval)
	b.WriteString("You will be notified when a position leaves or re-enters its range and when an automatic claim or compound runs.\n\n")
	fmt.Fprintf(&b, "⏰ %s", now.Format(timeLayout))
	return b.String()
}

func FormatOutOfRange(event model.RangeEvent, now time.Time) string {
	var b strings.Builder
	if event.Kind == model.EventInitialOutOfRange {
		b.WriteString("🚨 *Position out of range at startup*\n\n")
	} else {
		b.WriteString("🚨 *Position moved out of range*\n\n")
	}
	fmt.Fprintf(&b, "📍 Position: %s\n", code(event.PositionName))
	fmt.Fprintf(&b, "💰 Current price: %s\n", code(price(event.CurrentPrice)))
	fmt.Fprintf(&b, "📊 Range: %s - %s\n", code(price(event.LowerPrice)), code(price(event.UpperPrice)))
	fmt.Fprintf(&b, "⚠️ Deviation: %s\n\n", code(fmt.Sprintf("%.2f%%", event.DeviationPercent)))
	fmt.Fprintf(&b, "⏰ %s\n\n", now.Format(timeLayout))
	b.WriteString("💡 The position no longer earns fees. Consider rebalancing its range.")
	return b.String()
}

func FormatBackInRange(event model.RangeEvent, now time.Time) string {
	var b strings.Builder
	b.WriteString("✅ *Position back in range*\n\n")
	fmt.Fprintf(&b, "📍 Position: %s\n", code(event.PositionName))
	fmt.Fprintf(&b, "💰 Current price: %s\n\n", code(price(event.CurrentPrice)))
	fmt.Fprintf(&b, "⏰ %s\n\n", now.Format(timeLayout))
	b.WriteString("🎉 The position is earning fees again.")
	return b.String()
}

func FormatActionCompleted(result model.ActionResult, now time.Time) string {
	emoji, verb := "💰", "Claim"
	if result.Action == model.ActionCompound {
		emoji, verb = "🔄", "Compound"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Automatic %s executed*\n\n", emoji, strings.ToLower(verb))
	fmt.Fprintf(&b, "📍 Position: %s\n", code(result.PositionName))
	fmt.Fprintf(&b, "💵 %s amount:\n", verb)
	fmt.Fprintf(&b, "• %s %s\n", result.Amount0.String(), result.Symbol0)
	fmt.Fprintf(&b, "• %s %s\n\n", result.Amount1.String(), result.Symbol1)
	fmt.Fprintf(&b, "⏰ %s", now.Format(timeLayout))
	if result.TxRef != "" {
		fmt.Fprintf(&b, "\n🔗 Tx: %s", code(ShortHash(result.TxRef)))
	}
	if result.IncreaseTxRef != "" {
		fmt.Fprintf(&b, "\n🔗 Re-supply tx: %s", code(ShortHash(result.IncreaseTxRef)))
	}
	return b.String()
}

func FormatRebalanceNeeded(signal model.RebalanceSignal, now time.Time) string {
	var b strings.Builder
	b.WriteString("♻️ *Rebalance threshold reached*\n\n")
	fmt.Fprintf(&b, "📍 Position: %s\n", code(signal.PositionName))
	fmt.Fprintf(&b, "💰 Current price: %s\n", code(price(signal.CurrentPrice)))
	fmt.Fprintf(&b, "⚠️ Deviation: %s (threshold %s)\n\n",
		code(fmt.Sprintf("%.2f%%", signal.DeviationPercent)),
		code(fmt.Sprintf("%.2f%%", signal.ThresholdPercent)))
	fmt.Fprintf(&b, "⏰ %s", now.Format(timeLayout))
	return b.String()
}

func FormatError(message string, now time.Time) string {
	var b strings.Builder
	b.WriteString("❌ *Monitor error*\n\n")
	fmt.Fprintf(&b, "Error: %s\n\n", code(message))
	fmt.Fprintf(&b, "⏰ %s\n\n", now.Format(timeLayout))
	b.WriteString("Check the logs for details.")
	return b.String()
}
