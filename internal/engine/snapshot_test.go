package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/internal/engine"
)

func factSetFixture() *engine.FactSet {
	jobStart := testNow.Add(-4 * time.Hour)
	due := testNow.Add(-2 * time.Hour)
	return &engine.FactSet{
		Batches: []domain.StageBatch{
			openBatch("b1", "wo-1", domain.StageProduction, 100, 2, domain.BatchInProgress),
			openBatch("b2", "wo-2", domain.StageProduction, 50, 10, domain.BatchQueued),
			openBatch("b3", "wo-3", domain.StageProduction, 200, 14, domain.BatchQueued),
			openBatch("b4", "wo-1", domain.StageQuality, 30, 3, domain.BatchQueued),
		},
		Machines: []domain.Machine{
			{ID: "m2", Name: "Lathe 2", RawStatus: "idle", QCFlag: "passed"},
			{ID: "m1", Name: "Mill 1", RawStatus: "running", CurrentWorkOrderID: "wo-1", JobStartedAt: &jobStart},
		},
		Maintenance: []domain.MaintenanceEvent{
			{ID: "mt1", MachineID: "m2", Reason: "preventive maintenance", StartedAt: testNow.Add(-time.Hour)},
		},
		Assignments: []domain.QueuedAssignment{
			{ID: "a1", MachineID: "m2", WorkOrderID: "wo-2", ScheduledAt: testNow.Add(-6 * time.Hour), Status: "scheduled"},
		},
		Logs: []domain.ProductionLogRow{
			{MachineID: "m1", WorkOrderID: "wo-1", LogDate: testNow, LoggedAt: testNow.Add(-time.Hour), CycleTimeSec: 360, PiecesProduced: 30},
		},
		Orders: map[string]domain.WorkOrderSummary{
			"wo-1": {ID: "wo-1", ItemCode: "IT-1", Quantity: 130, MaterialQCPassed: true, FirstPieceQCPassed: true},
			"wo-2": {ID: "wo-2", ItemCode: "IT-2", Quantity: 50, DueDate: &due, MaterialQCPassed: true, FirstPieceQCPassed: true},
		},
		Items: map[string]domain.ItemMaster{
			"IT-1": {Code: "IT-1", CycleTimeSec: 400},
		},
	}
}

func TestBuildSnapshot_FullAssembly(t *testing.T) {
	cfg := engine.DefaultConfig()
	dayStart := testNow.Add(-6 * time.Hour)

	snap := engine.BuildSnapshot(factSetFixture(), testNow, dayStart, cfg, discardLogger())

	require.Len(t, snap.Stages, len(domain.PipelineStages))
	assert.Equal(t, testNow, snap.GeneratedAt)

	// Machines come out sorted by ID regardless of input order.
	require.Len(t, snap.Machines, 2)
	assert.Equal(t, "m1", snap.Machines[0].MachineID)
	assert.Equal(t, "m2", snap.Machines[1].MachineID)

	m1 := snap.Machines[0]
	assert.Equal(t, domain.ReadinessRunning, m1.Readiness)
	require.NotNil(t, m1.CycleTime)
	assert.Equal(t, domain.CycleSourceLog, m1.CycleTime.Source)
	assert.Equal(t, 30, m1.PiecesToday)
	assert.InDelta(t, 4, m1.HoursRunning, 0.001)
	// ratio = 30 / (10 * 4) = 0.75
	assert.Equal(t, domain.ProductionAtRisk, m1.Production)
	assert.Empty(t, m1.Blockers)

	m2 := snap.Machines[1]
	assert.Equal(t, domain.ReadinessMaintenanceDue, m2.Readiness)
	assert.Equal(t, 1, m2.QueueDepth)
	assert.Equal(t, 50, m2.QueuedQuantity)
	assert.InDelta(t, 6, m2.OldestQueuedHours, 0.001)

	// wo-2 is past due and sits in production, so the stage reports overdue.
	var prod domain.StageMetric
	for _, s := range snap.Stages {
		if s.Stage == domain.StageProduction {
			prod = s
		}
	}
	assert.Equal(t, 3, prod.BatchCount)
	assert.Equal(t, domain.StageBlockOverdue, prod.BlockingReason)
	assert.Equal(t, 1, prod.BlockingCount)
	assert.Equal(t, 1, prod.BottleneckRank, "production is the dominant bottleneck")
}

func TestBuildSnapshot_IdempotentUnderUnchangedInput(t *testing.T) {
	cfg := engine.DefaultConfig()
	dayStart := testNow.Add(-6 * time.Hour)

	a := engine.BuildSnapshot(factSetFixture(), testNow, dayStart, cfg, discardLogger())
	b := engine.BuildSnapshot(factSetFixture(), testNow, dayStart, cfg, discardLogger())

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, aJSON, bJSON, "same facts and wall clock must yield byte-identical snapshots")
}

func TestBuildSnapshot_MissingWorkOrderRenderedWithDefaults(t *testing.T) {
	facts := factSetFixture()
	facts.Machines = append(facts.Machines, domain.Machine{
		ID: "m3", Name: "Saw 3", RawStatus: "running", CurrentWorkOrderID: "wo-ghost",
	})

	snap := engine.BuildSnapshot(facts, testNow, testNow.Add(-6*time.Hour), engine.DefaultConfig(), discardLogger())

	require.Len(t, snap.Machines, 3)
	m3 := snap.Machines[2]
	assert.Equal(t, "Unknown", m3.WorkOrderLabel, "dangling reference renders a default label")
	assert.Equal(t, domain.ReadinessRunning, m3.Readiness, "the machine itself is not dropped")
	assert.Nil(t, m3.CycleTime)
	assert.Equal(t, domain.ProductionIdle, m3.Production)
}

func TestBuildSnapshot_StageMaintenanceBlocking(t *testing.T) {
	facts := factSetFixture()
	// Put m1 (running wo-1, which has open batches in production and quality)
	// under breakdown maintenance.
	facts.Maintenance = append(facts.Maintenance, domain.MaintenanceEvent{
		ID: "mt2", MachineID: "m1", Reason: "gearbox failure", StartedAt: testNow.Add(-time.Hour),
	})

	snap := engine.BuildSnapshot(facts, testNow, testNow.Add(-6*time.Hour), engine.DefaultConfig(), discardLogger())

	for _, s := range snap.Stages {
		if s.Stage == domain.StageProduction || s.Stage == domain.StageQuality {
			assert.Equal(t, domain.StageBlockMaintenance, s.BlockingReason,
				"stage %s: maintenance on a relevant machine dominates", s.Stage)
		}
	}
	assert.Equal(t, domain.ReadinessDown, snap.Machines[0].Readiness)
}

// stubSource returns canned facts and counts calls; used to verify Collect
// builds the cross-reference maps and propagates fetch failures.
type stubSource struct {
	batchesErr error
	ordersSeen []string
	codesSeen  []string
}

func (s *stubSource) OpenBatches(context.Context, time.Duration) ([]domain.StageBatch, error) {
	if s.batchesErr != nil {
		return nil, s.batchesErr
	}
	return []domain.StageBatch{openBatch("b1", "wo-1", domain.StageCutting, 10, 1, domain.BatchQueued)}, nil
}

func (s *stubSource) Machines(context.Context) ([]domain.Machine, error) {
	return []domain.Machine{{ID: "m1", Name: "Mill 1", CurrentWorkOrderID: "wo-2"}}, nil
}

func (s *stubSource) ActiveMaintenance(context.Context, []string) ([]domain.MaintenanceEvent, error) {
	return nil, nil
}

func (s *stubSource) QueuedAssignments(context.Context) ([]domain.QueuedAssignment, error) {
	return nil, nil
}

func (s *stubSource) WorkOrders(_ context.Context, ids []string) ([]domain.WorkOrderSummary, error) {
	s.ordersSeen = ids
	out := make([]domain.WorkOrderSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.WorkOrderSummary{ID: id, ItemCode: "IT-" + id})
	}
	return out, nil
}

func (s *stubSource) ItemMasters(_ context.Context, codes []string) ([]domain.ItemMaster, error) {
	s.codesSeen = codes
	return nil, nil
}

func (s *stubSource) TodayLogs(context.Context, []string, time.Time) ([]domain.ProductionLogRow, error) {
	return nil, nil
}

func TestCollect_JoinsReferencedOrders(t *testing.T) {
	src := &stubSource{}

	facts, err := engine.Collect(context.Background(), src, time.Hour, testNow)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wo-1", "wo-2"}, src.ordersSeen,
		"orders referenced by batches and machines are both fetched")
	assert.Len(t, facts.Orders, 2)
	assert.ElementsMatch(t, []string{"IT-wo-1", "IT-wo-2"}, src.codesSeen)
}

func TestCollect_AnyFetchFailureAbortsTheCycle(t *testing.T) {
	src := &stubSource{batchesErr: assert.AnError}

	facts, err := engine.Collect(context.Background(), src, time.Hour, testNow)

	require.Error(t, err)
	assert.Nil(t, facts, "no half-populated fact set on failure")
}
