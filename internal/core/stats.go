package core

// FundStats is the derived completion picture of one fund instance.
type FundStats struct {
	TotalCollected       Money
	Remaining            Money
	CompletionPercentage float64
}

// ComputeStats derives stats from a target and the sum of collections.
// Callers must guard target.Cents == 0; the creation invariant otherwise
// prevents it. Over-collection is allowed, so Remaining may go negative
// and the percentage may exceed 100.
func ComputeStats(target, totalCollected Money) FundStats {
	stats := FundStats{
		TotalCollected: totalCollected,
		Remaining:      Money{Cents: target.Cents - totalCollected.Cents},
	}
	if target.Cents != 0 {
		stats.CompletionPercentage = 100 * float64(totalCollected.Cents) / float64(target.Cents)
	}
	return stats
}

// FundSummary annotates a fund instance with its derived stats for
// reporting endpoints.
type FundSummary struct {
	Kind   FundKind
	FundID int64
	Title  string
	Status FundStatus
	Target Money
	Stats  FundStats
}
