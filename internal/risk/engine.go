package risk

import (
	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/types"
)

// Engine gates detector output before publication. Thresholds default to
// zero, which lets everything through.
type Engine struct{ cfg *config.Config }

func NewEngine(cfg *config.Config) *Engine { return &Engine{cfg: cfg} }

// AllowOpportunity checks a spatial opportunity against the absolute
// profit and confidence floors.
func (e *Engine) AllowOpportunity(opp types.ArbitrageOpportunity) bool {
	if opp.EstProfitUSD < e.cfg.Risk.MinProfitUSD {
		return false
	}
	if opp.Confidence < e.cfg.Risk.MinConfidence {
		return false
	}
	return true
}

// AllowSignal applies the confidence floor to pairs-trade signals. Exits
// always pass: a position that should close must never be held back.
func (e *Engine) AllowSignal(sig types.ZScoreSignal) bool {
	if sig.Direction == types.ExitSpread {
		return true
	}
	return sig.Confidence >= e.cfg.Risk.MinConfidence
}
