package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/internal/engine"
)

func activeEvent(reason string) domain.MaintenanceEvent {
	return domain.MaintenanceEvent{MachineID: "m1", Reason: reason, StartedAt: testNow.Add(-time.Hour)}
}

func TestClassifyReadiness_PriorityOrder(t *testing.T) {
	running := domain.Machine{ID: "m1", RawStatus: "running", CurrentWorkOrderID: "wo-1"}

	tests := []struct {
		name  string
		facts engine.MachineFacts
		want  domain.Readiness
	}{
		{
			name: "breakdown maintenance beats everything",
			facts: engine.MachineFacts{
				Machine:     running,
				Maintenance: []domain.MaintenanceEvent{activeEvent("spindle bearing seized")},
				QueueDepth:  3,
			},
			want: domain.ReadinessDown,
		},
		{
			name: "planned maintenance reason yields maintenance_due",
			facts: engine.MachineFacts{
				Machine:     running,
				Maintenance: []domain.MaintenanceEvent{activeEvent("weekly preventive maintenance")},
			},
			want: domain.ReadinessMaintenanceDue,
		},
		{
			name: "service wording also counts as planned",
			facts: engine.MachineFacts{
				Machine:     running,
				Maintenance: []domain.MaintenanceEvent{activeEvent("annual service visit")},
			},
			want: domain.ReadinessMaintenanceDue,
		},
		{
			name:  "raw fault status without maintenance",
			facts: engine.MachineFacts{Machine: domain.Machine{ID: "m1", RawStatus: "fault", CurrentWorkOrderID: "wo-1"}},
			want:  domain.ReadinessDown,
		},
		{
			name:  "qc failure beats active work order",
			facts: engine.MachineFacts{Machine: domain.Machine{ID: "m1", RawStatus: "running", QCFlag: "failed", CurrentWorkOrderID: "wo-1"}},
			want:  domain.ReadinessQCBlocked,
		},
		{
			name:  "active work order means running",
			facts: engine.MachineFacts{Machine: running, QueueDepth: 5},
			want:  domain.ReadinessRunning,
		},
		{
			name: "idle with queue needs setup",
			facts: engine.MachineFacts{
				Machine:    domain.Machine{ID: "m1", RawStatus: "idle", QCFlag: "passed"},
				QueueDepth: 4,
			},
			want: domain.ReadinessSetupRequired,
		},
		{
			name:  "nothing pending means ready",
			facts: engine.MachineFacts{Machine: domain.Machine{ID: "m1", RawStatus: "idle"}},
			want:  domain.ReadinessReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.ClassifyReadiness(tt.facts))
		})
	}
}

func TestClassifyReadiness_ResolvedMaintenanceIgnored(t *testing.T) {
	ended := testNow.Add(-10 * time.Minute)
	e := activeEvent("crash")
	e.EndedAt = &ended

	got := engine.ClassifyReadiness(engine.MachineFacts{
		Machine:     domain.Machine{ID: "m1", RawStatus: "idle"},
		Maintenance: []domain.MaintenanceEvent{e},
	})
	assert.Equal(t, domain.ReadinessReady, got, "closed maintenance event must not block")
}

func TestClassifyReadiness_PureFunction(t *testing.T) {
	facts := engine.MachineFacts{
		Machine:     domain.Machine{ID: "m1", RawStatus: "idle", QCFlag: "passed"},
		Maintenance: []domain.MaintenanceEvent{activeEvent("coolant pump replacement")},
		QueueDepth:  2,
	}
	first := engine.ClassifyReadiness(facts)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, engine.ClassifyReadiness(facts),
			"identical facts must always classify identically")
	}
}
