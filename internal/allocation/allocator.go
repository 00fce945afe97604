// Package allocation computes how much capital each amp in a layer may
// deploy. Allocations are always derived fresh from the current snapshot and
// trailing performance; nothing here persists or mutates running state.
package allocation

import (
	"fmt"
	"math"
	"sort"

	"amp-engine/internal/config"
	"amp-engine/internal/models"
)

// Allocator splits layer capital across amps.
type Allocator struct {
	cfg config.AllocationConfig
}

// New creates an allocator with the given tuning.
func New(cfg config.AllocationConfig) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate computes the capital split for a layer. Only enabled amps
// participate. The invariant Σ allocated ≤ total always holds, with the
// residual reported explicitly as Reserved; every per-amp amount carries a
// reasoning string naming the method and its key inputs.
func (a *Allocator) Allocate(
	layerID string,
	totalCapital float64,
	amps []models.LayerAmp,
	strategy models.CapitalAllocationStrategy,
	perfByAmp map[string]models.AmpPerformanceMetrics,
) models.PortfolioAllocation {
	out := models.PortfolioAllocation{
		LayerID:  layerID,
		Strategy: strategy,
		Total:    totalCapital,
		Reserved: totalCapital,
	}
	if totalCapital <= 0 {
		out.Total = math.Max(totalCapital, 0)
		out.Reserved = out.Total
		return out
	}

	enabled := enabledSorted(amps)
	if len(enabled) == 0 {
		return out
	}

	var fractions map[string]string // amp id -> reasoning
	var shares map[string]float64
	switch strategy {
	case models.AllocateEqual:
		shares, fractions = equalShares(enabled)
	case models.AllocateWeighted:
		shares, fractions = weightedShares(enabled)
	case models.AllocateDynamic:
		shares, fractions = a.dynamicShares(enabled, perfByAmp)
	case models.AllocateKelly:
		shares, fractions = a.kellyShares(enabled, perfByAmp)
	default:
		shares, fractions = equalShares(enabled)
		for id := range fractions {
			fractions[id] = fmt.Sprintf("unknown strategy %q, fell back to equal split", strategy)
		}
	}

	// Shares exceeding 1 in aggregate are rescaled so the layer can never be
	// over-allocated; a shortfall stays as reserved capital.
	var sum float64
	for _, f := range shares {
		sum += f
	}
	if sum > 1 {
		for id := range shares {
			shares[id] /= sum
		}
		sum = 1
	}

	var allocated float64
	for _, amp := range enabled {
		amount := totalCapital * shares[amp.AmpID]
		allocated += amount
		out.Allocations = append(out.Allocations, models.AllocationResult{
			AmpID:     amp.AmpID,
			Amount:    amount,
			Percent:   shares[amp.AmpID] * 100,
			Reasoning: fractions[amp.AmpID],
		})
	}
	out.Allocated = allocated
	out.Reserved = totalCapital - allocated
	if out.Reserved < 0 {
		out.Reserved = 0
	}
	return out
}

// Shares returns each amp's fraction of total capital, for capital-weighted
// conflict resolution.
func Shares(p models.PortfolioAllocation) map[string]float64 {
	shares := make(map[string]float64, len(p.Allocations))
	if p.Total <= 0 {
		return shares
	}
	for _, alloc := range p.Allocations {
		shares[alloc.AmpID] = alloc.Amount / p.Total
	}
	return shares
}

func enabledSorted(amps []models.LayerAmp) []models.LayerAmp {
	enabled := make([]models.LayerAmp, 0, len(amps))
	for _, amp := range amps {
		if amp.Enabled {
			enabled = append(enabled, amp)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].AmpID < enabled[j].AmpID })
	return enabled
}

func equalShares(enabled []models.LayerAmp) (map[string]float64, map[string]string) {
	share := 1.0 / float64(len(enabled))
	shares := make(map[string]float64, len(enabled))
	reasons := make(map[string]string, len(enabled))
	for _, amp := range enabled {
		shares[amp.AmpID] = share
		reasons[amp.AmpID] = fmt.Sprintf("equal split across %d enabled amps", len(enabled))
	}
	return shares, reasons
}

// weightedShares uses the configured capital_allocation fractions, rescaled
// by 1/sum when they do not sum to exactly 1. All-zero fractions degrade to
// an equal split rather than allocating nothing silently.
func weightedShares(enabled []models.LayerAmp) (map[string]float64, map[string]string) {
	var sum float64
	for _, amp := range enabled {
		sum += amp.CapitalAllocation
	}
	if sum == 0 {
		shares, reasons := equalShares(enabled)
		for id := range reasons {
			reasons[id] = "weighted fractions all zero, fell back to equal split"
		}
		return shares, reasons
	}

	shares := make(map[string]float64, len(enabled))
	reasons := make(map[string]string, len(enabled))
	for _, amp := range enabled {
		shares[amp.AmpID] = amp.CapitalAllocation / sum
		if math.Abs(sum-1) > 1e-9 {
			reasons[amp.AmpID] = fmt.Sprintf("configured fraction %.4f rescaled by 1/%.4f (fractions summed to %.4f)",
				amp.CapitalAllocation, sum, sum)
		} else {
			reasons[amp.AmpID] = fmt.Sprintf("configured fraction %.4f", amp.CapitalAllocation)
		}
	}
	return shares, reasons
}

// dynamicShares starts from an equal split and tilts it toward amps with
// positive trailing Sharpe. Negative Sharpe is clipped to zero so bad
// performance is never rewarded with extra capital.
func (a *Allocator) dynamicShares(enabled []models.LayerAmp, perfByAmp map[string]models.AmpPerformanceMetrics) (map[string]float64, map[string]string) {
	weights := make(map[string]float64, len(enabled))
	var sum float64
	for _, amp := range enabled {
		sharpe := math.Max(perfByAmp[amp.AmpID].Sharpe, 0)
		w := 1 + sharpe
		weights[amp.AmpID] = w
		sum += w
	}

	shares := make(map[string]float64, len(enabled))
	reasons := make(map[string]string, len(enabled))
	for _, amp := range enabled {
		shares[amp.AmpID] = weights[amp.AmpID] / sum
		reasons[amp.AmpID] = fmt.Sprintf("dynamic: equal base tilted by trailing sharpe %.2f (clipped at 0)",
			perfByAmp[amp.AmpID].Sharpe)
	}
	return shares, reasons
}

// kellyShares sizes each amp by the Kelly criterion f* = p - (1-p)/b, where p
// is trailing win rate and b the win/loss payoff ratio, capped by the
// configured safety fraction. Amps without enough closed trades, or with a
// non-positive payoff ratio, take the equal share instead. Fractions are only
// rescaled when they would over-allocate; otherwise the shortfall stays
// reserved.
func (a *Allocator) kellyShares(enabled []models.LayerAmp, perfByAmp map[string]models.AmpPerformanceMetrics) (map[string]float64, map[string]string) {
	equalShare := 1.0 / float64(len(enabled))
	shares := make(map[string]float64, len(enabled))
	reasons := make(map[string]string, len(enabled))

	for _, amp := range enabled {
		perf, ok := perfByAmp[amp.AmpID]
		if !ok || !perf.HasTradeHistory(a.cfg.KellyMinTrades) {
			shares[amp.AmpID] = equalShare
			reasons[amp.AmpID] = fmt.Sprintf("kelly: insufficient trade history (%d trades, need %d), using equal share",
				perf.TradeCount, a.cfg.KellyMinTrades)
			continue
		}

		b := perf.AvgWin / perf.AvgLoss
		if b <= 0 {
			shares[amp.AmpID] = equalShare
			reasons[amp.AmpID] = fmt.Sprintf("kelly: non-positive payoff ratio %.2f, using equal share", b)
			continue
		}

		p := perf.WinRate
		f := p - (1-p)/b
		clipped := math.Min(math.Max(f, 0), a.cfg.KellyMaxFraction)
		shares[amp.AmpID] = clipped
		reasons[amp.AmpID] = fmt.Sprintf("kelly: p=%.2f b=%.2f f*=%.3f clipped to %.3f (cap %.2f)",
			p, b, f, clipped, a.cfg.KellyMaxFraction)
	}
	return shares, reasons
}
