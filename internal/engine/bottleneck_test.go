package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/internal/engine"
)

func workingStage(stage domain.Stage, wait float64, qty, count int) domain.StageMetric {
	return domain.StageMetric{
		Stage:         stage,
		AvgWaitHours:  wait,
		TotalQuantity: qty,
		BatchCount:    count,
		HasWork:       count > 0,
	}
}

func TestStageScore_Formula(t *testing.T) {
	cfg := engine.DefaultConfig()
	m := workingStage(domain.StageProduction, 8.67, 350, 3)
	// 8.67*350 + 3*10
	assert.InDelta(t, 3064.5, engine.StageScore(m, cfg), 0.01)
}

func TestRankBottlenecks_TopTwoOnly(t *testing.T) {
	cfg := engine.DefaultConfig()
	stages := []domain.StageMetric{
		workingStage(domain.StageCutting, 2, 100, 2),    // 220
		workingStage(domain.StageProduction, 10, 80, 4), // 840
		workingStage(domain.StageQuality, 5, 90, 1),     // 460
	}

	ranked := engine.RankBottlenecks(stages, nil, cfg)

	require.Len(t, ranked, 2, "only the top two entries are ranked")
	assert.Equal(t, "production", ranked[0].ID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "quality", ranked[1].ID)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestRankBottlenecks_IdleStageNeverRanked(t *testing.T) {
	cfg := engine.DefaultConfig()
	// Stale metrics on a stage with no work must not make it a bottleneck.
	stale := domain.StageMetric{Stage: domain.StageDispatch, AvgWaitHours: 100, TotalQuantity: 500, HasWork: false}
	stages := []domain.StageMetric{stale, workingStage(domain.StageCutting, 4, 50, 2)}

	ranked := engine.RankBottlenecks(stages, nil, cfg)

	for _, e := range ranked {
		assert.NotEqual(t, "dispatch", e.ID, "hasWork=false must exclude the stage from ranking")
	}
}

func TestRankBottlenecks_SignificanceThreshold(t *testing.T) {
	cfg := engine.DefaultConfig()
	stages := []domain.StageMetric{
		workingStage(domain.StageCutting, 1, 10, 1),    // 20 — below 50
		workingStage(domain.StageProduction, 1, 30, 2), // 50 — not strictly above
	}

	assert.Empty(t, engine.RankBottlenecks(stages, nil, cfg),
		"scores at or below the significance threshold are unranked")
}

func TestRankBottlenecks_MachinesParticipate(t *testing.T) {
	cfg := engine.DefaultConfig()
	stages := []domain.StageMetric{workingStage(domain.StageCutting, 1, 60, 1)} // 70
	machines := []domain.MachineState{
		{MachineID: "m1", QueueDepth: 3, QueuedQuantity: 40, OldestQueuedHours: 6}, // 270
		{MachineID: "m2", QueueDepth: 0, QueuedQuantity: 500, OldestQueuedHours: 50},
	}

	ranked := engine.RankBottlenecks(stages, machines, cfg)

	require.Len(t, ranked, 2)
	assert.Equal(t, domain.BottleneckMachine, ranked[0].Kind)
	assert.Equal(t, "m1", ranked[0].ID)
	assert.Equal(t, domain.BottleneckStage, ranked[1].Kind)
	assert.Equal(t, "cutting", ranked[1].ID)
}

func TestRankBottlenecks_DeterministicTieBreak(t *testing.T) {
	cfg := engine.DefaultConfig()
	// Two stages with identical scores: alphabetical identifier decides.
	stages := []domain.StageMetric{
		workingStage(domain.StagePacking, 10, 10, 0),
		workingStage(domain.StageCutting, 10, 10, 0),
	}
	stages[0].HasWork = true
	stages[1].HasWork = true

	first := engine.RankBottlenecks(stages, nil, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.RankBottlenecks(stages, nil, cfg))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "cutting", first[0].ID)
}
