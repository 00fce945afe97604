// Package resolver reconciles the aggregated signals of every enabled amp in
// a layer into one coordinated signal per symbol and evaluation cycle.
package resolver

import (
	"fmt"
	"math"
	"sort"

	"amp-engine/internal/models"
)

// Input is everything one resolution needs: the per-amp signals for a single
// symbol, the amp configuration, current capital shares for capital-weighted
// voting, and whether the layer currently holds a position in the symbol
// (veto needs it to choose between sell-to-close and no-op).
type Input struct {
	LayerID     string
	Symbol      string
	Signals     map[string]models.AggregatedSignal // amp id -> signal
	Amps        []models.LayerAmp
	Shares      map[string]float64 // amp id -> capital share [0,1]
	HasPosition bool
}

// Resolver produces coordinated signals. Quantity is always left at zero;
// sizing is the capital allocator's job, applied afterwards.
type Resolver struct {
	neutralBand float64
}

// New creates a resolver using the given neutral band for weighted votes.
func New(neutralBand float64) *Resolver {
	return &Resolver{neutralBand: neutralBand}
}

// Resolve applies the layer's conflict-resolution strategy. The result always
// records whether the amps disagreed and which rule decided.
func (r *Resolver) Resolve(in Input, strategy models.ConflictResolutionStrategy) models.CoordinatedSignal {
	out := models.CoordinatedSignal{
		LayerID: in.LayerID,
		Symbol:  in.Symbol,
		Action:  models.ActionHold,
		Resolution: models.Resolution{
			Method: strategy,
		},
	}

	ampIDs := r.sortedAmpIDs(in)
	if len(ampIDs) == 0 {
		out.Resolution.Reasoning = "no amp signals to resolve"
		return out
	}
	out.Timestamp = in.Signals[ampIDs[0]].Timestamp
	out.Resolution.Conflicts = conflicts(in.Signals)
	out.Amps = ampWeights(in, ampIDs)

	switch strategy {
	case models.ResolvePriority:
		r.resolvePriority(in, ampIDs, &out)
	case models.ResolveConfidence:
		r.resolveConfidence(in, ampIDs, &out)
	case models.ResolveVeto:
		r.resolveVeto(in, ampIDs, &out)
	case models.ResolveWeighted:
		r.resolveWeighted(in, ampIDs, &out)
	default:
		// Unknown strategies degrade to the weighted vote rather than fail.
		r.resolveWeighted(in, ampIDs, &out)
		out.Resolution.Reasoning = fmt.Sprintf("unknown strategy %q, resolved as weighted: %s",
			strategy, out.Resolution.Reasoning)
	}
	return out
}

// sortedAmpIDs returns the ids of amps that actually produced a signal, in
// ascending order for deterministic iteration.
func (r *Resolver) sortedAmpIDs(in Input) []string {
	ids := make([]string, 0, len(in.Signals))
	for id := range in.Signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func conflicts(signals map[string]models.AggregatedSignal) bool {
	seen := make(map[models.Action]bool)
	for _, sig := range signals {
		seen[sig.Action] = true
	}
	return len(seen) > 1
}

func ampWeights(in Input, ampIDs []string) []models.AmpWeight {
	weights := make([]models.AmpWeight, 0, len(ampIDs))
	for _, id := range ampIDs {
		weights = append(weights, models.AmpWeight{
			AmpID:  id,
			Action: in.Signals[id].Action,
			Weight: in.Shares[id],
		})
	}
	return weights
}

func (r *Resolver) resolvePriority(in Input, ampIDs []string, out *models.CoordinatedSignal) {
	priorities := make(map[string]int, len(in.Amps))
	for _, amp := range in.Amps {
		priorities[amp.AmpID] = amp.Priority
	}

	var winner string
	for _, id := range ampIDs {
		if winner == "" {
			winner = id
			continue
		}
		switch {
		case priorities[id] > priorities[winner]:
			winner = id
		case priorities[id] == priorities[winner] &&
			in.Signals[id].Confidence > in.Signals[winner].Confidence:
			winner = id
			// Equal priority and confidence keeps the lexically first amp id.
		}
	}

	sig := in.Signals[winner]
	out.Action = sig.Action
	out.Confidence = sig.Confidence
	out.Resolution.Reasoning = fmt.Sprintf("priority: amp %s (priority %d) decides %s with confidence %.2f",
		winner, priorities[winner], sig.Action, sig.Confidence)
}

func (r *Resolver) resolveConfidence(in Input, ampIDs []string, out *models.CoordinatedSignal) {
	var winner string
	for _, id := range ampIDs {
		if winner == "" || in.Signals[id].Confidence > in.Signals[winner].Confidence {
			winner = id
		}
	}

	sig := in.Signals[winner]
	out.Action = sig.Action
	out.Confidence = sig.Confidence
	out.Resolution.Reasoning = fmt.Sprintf("confidence: amp %s decides %s with highest confidence %.2f",
		winner, sig.Action, sig.Confidence)
}

func (r *Resolver) resolveWeighted(in Input, ampIDs []string, out *models.CoordinatedSignal) {
	shares := in.Shares
	if len(shares) == 0 {
		// No allocation yet; treat every amp equally.
		shares = make(map[string]float64, len(ampIDs))
		for _, id := range ampIDs {
			shares[id] = 1.0 / float64(len(ampIDs))
		}
	}

	var score, total float64
	for _, id := range ampIDs {
		sig := in.Signals[id]
		score += shares[id] * sig.Action.Score() * sig.Confidence
		total += shares[id]
	}
	if total == 0 {
		out.Resolution.Reasoning = "weighted: no capital behind any signal, holding"
		return
	}
	normalized := score / total

	out.Confidence = math.Min(math.Abs(normalized), 1)
	switch {
	case normalized >= r.neutralBand:
		out.Action = models.ActionBuy
	case normalized <= -r.neutralBand:
		out.Action = models.ActionSell
	default:
		out.Action = models.ActionHold
	}
	out.Resolution.Reasoning = fmt.Sprintf("weighted: capital-weighted score %.3f across %d amps (band %.2f) => %s",
		normalized, len(ampIDs), r.neutralBand, out.Action)
}

func (r *Resolver) resolveVeto(in Input, ampIDs []string, out *models.CoordinatedSignal) {
	var vetoer string
	for _, id := range ampIDs {
		if in.Signals[id].Action == models.ActionSell {
			if vetoer == "" || in.Signals[id].Confidence > in.Signals[vetoer].Confidence {
				vetoer = id
			}
		}
	}

	if vetoer != "" {
		sig := in.Signals[vetoer]
		if in.HasPosition {
			out.Action = models.ActionSell
			out.Confidence = sig.Confidence
			out.Resolution.Reasoning = fmt.Sprintf("veto: amp %s sells (confidence %.2f), closing existing position",
				vetoer, sig.Confidence)
		} else {
			out.Action = models.ActionHold
			out.Confidence = sig.Confidence
			out.Resolution.Reasoning = fmt.Sprintf("veto: amp %s sells (confidence %.2f) but no position is held, holding",
				vetoer, sig.Confidence)
		}
		return
	}

	// No veto cast; the remaining buy/hold signals resolve by weighted vote.
	r.resolveWeighted(in, ampIDs, out)
	out.Resolution.Reasoning = "veto: no sell signals, " + out.Resolution.Reasoning
}
