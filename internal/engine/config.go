package engine

// Config carries every tuning constant of the derivation engine. Defaults
// come from floor experience rather than first principles; they are exposed
// as named values so operators can override them.
type Config struct {
	// CapacityWaitHours is the average stage wait beyond which a stage with
	// no harder blocker is labelled capacity-blocked.
	CapacityWaitHours float64
	// OnCycleRatio is the actual/expected output ratio at or above which a
	// run is on cycle.
	OnCycleRatio float64
	// AtRiskRatio is the lower bound of the at-risk band. Below it the run
	// counts as blocked.
	AtRiskRatio float64
	// SignificanceScore is the minimum bottleneck score an entity must exceed
	// to receive a rank.
	SignificanceScore float64
	// BatchCountWeight is the per-batch additive weight in the bottleneck
	// score formula.
	BatchCountWeight float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		CapacityWaitHours: 8,
		OnCycleRatio:      0.85,
		AtRiskRatio:       0.60,
		SignificanceScore: 50,
		BatchCountWeight:  10,
	}
}
