package engine

import (
	"sort"

	"github.com/shopfloor/floorstate/internal/domain"
)

// maxBottleneckRank caps the ranking: this is a top-2 selection, not a full
// ordering. Rank 3+ is deliberately undefined and unused by consumers.
const maxBottleneckRank = 2

// StageScore computes the contention score for a stage carrying work.
func StageScore(m domain.StageMetric, cfg Config) float64 {
	return m.AvgWaitHours*float64(m.TotalQuantity) + float64(m.BatchCount)*cfg.BatchCountWeight
}

// MachineScore computes the analogous score for a machine with a queue:
// oldest queue age stands in for wait, queued quantity for total quantity and
// queue depth for batch count.
func MachineScore(s domain.MachineState, cfg Config) float64 {
	return s.OldestQueuedHours*float64(s.QueuedQuantity) + float64(s.QueueDepth)*cfg.BatchCountWeight
}

// RankBottlenecks ranks stages and machines together and returns the top two
// entries whose score exceeds the significance threshold, rank 1 first.
//
// Entities without work never participate: a stage with no open batches or a
// machine with an empty queue is excluded before scoring, so an idle entity
// can never be "the" bottleneck even if a stale metric were nonzero.
// Ties break deterministically: score descending, stages before machines,
// then identifier.
func RankBottlenecks(
	stages []domain.StageMetric,
	machines []domain.MachineState,
	cfg Config,
) []domain.BottleneckEntry {
	var entries []domain.BottleneckEntry
	for _, m := range stages {
		if !m.HasWork {
			continue
		}
		entries = append(entries, domain.BottleneckEntry{
			Kind:  domain.BottleneckStage,
			ID:    string(m.Stage),
			Score: StageScore(m, cfg),
		})
	}
	for _, s := range machines {
		if s.QueueDepth == 0 {
			continue
		}
		entries = append(entries, domain.BottleneckEntry{
			Kind:  domain.BottleneckMachine,
			ID:    s.MachineID,
			Score: MachineScore(s, cfg),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Kind != b.Kind {
			return a.Kind == domain.BottleneckStage
		}
		return a.ID < b.ID
	})

	var ranked []domain.BottleneckEntry
	for _, e := range entries {
		if len(ranked) == maxBottleneckRank {
			break
		}
		if e.Score <= cfg.SignificanceScore {
			break
		}
		e.Rank = len(ranked) + 1
		ranked = append(ranked, e)
	}
	return ranked
}
