package models

// AllocationResult is the capital granted to one amp.
type AllocationResult struct {
	AmpID     string
	Amount    float64
	Percent   float64 // share of total capital, [0,100]
	Reasoning string
}

// PortfolioAllocation is the full capital split for a layer. Always derived
// fresh from the current snapshot, never persisted as a running mutation.
// Reserved is the unallocated residual; Allocated + Reserved = Total.
type PortfolioAllocation struct {
	LayerID     string
	Strategy    CapitalAllocationStrategy
	Total       float64
	Allocated   float64
	Reserved    float64
	Allocations []AllocationResult
}

// ForAmp returns the allocation for the given amp, if present.
func (p PortfolioAllocation) ForAmp(ampID string) (AllocationResult, bool) {
	for _, a := range p.Allocations {
		if a.AmpID == ampID {
			return a, true
		}
	}
	return AllocationResult{}, false
}
