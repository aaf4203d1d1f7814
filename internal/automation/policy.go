package automation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"lpMonitor/internal/model"
)

// Decision is the policy outcome for one snapshot.
type Decision struct {
	Action    model.Action
	Rebalance bool
	Reason    string
}

// None reports whether nothing needs to be dispatched.
func (d Decision) None() bool {
	return d.Action == model.ActionNone && !d.Rebalance
}

// Decide evaluates the automation config against the snapshot. It holds no
// state: the same snapshot always yields the same decision.
func Decide(snap model.Snapshot, cfg model.AutomationConfig) Decision {
	decision := Decision{Action: model.ActionNone}
	if !cfg.Enabled {
		decision.Reason = "automation disabled"
		return decision
	}

	minFee := decimal.NewFromFloat(cfg.MinFeeToClaimUSD)
	if snap.FeesPendingUSD.GreaterThan(minFee) {
		switch {
		case cfg.AutoCompound:
			decision.Action = model.ActionCompound
		case cfg.AutoClaim:
			decision.Action = model.ActionClaim
		}
		if decision.Action != model.ActionNone {
			decision.Reason = fmt.Sprintf("pending fees %s USD above %s", snap.FeesPendingUSD.StringFixed(2), minFee.StringFixed(2))
		}
	}

	if cfg.AutoRebalance && !snap.InRange && snap.DeviationPercent > cfg.RebalanceThresholdPercent && hasLiquidity(snap) {
		decision.Rebalance = true
		// Fees are not re-supplied to a position that is about to be exited.
		if decision.Action == model.ActionCompound {
			decision.Action = model.ActionClaim
		}
		if decision.Reason != "" {
			decision.Reason += "; "
		}
		decision.Reason += fmt.Sprintf("deviation %.2f%% above %.2f%%", snap.DeviationPercent, cfg.RebalanceThresholdPercent)
	}
	return decision
}

func hasLiquidity(snap model.Snapshot) bool {
	n, ok := new(big.Int).SetString(snap.Liquidity, 10)
	return ok && n.Sign() > 0
}
