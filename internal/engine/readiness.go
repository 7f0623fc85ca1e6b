package engine

import "github.com/shopfloor/floorstate/internal/domain"

// MachineFacts is everything the readiness classifier may look at for one
// machine in one cycle.
type MachineFacts struct {
	Machine     domain.Machine
	Maintenance []domain.MaintenanceEvent // active events only
	QueueDepth  int
}

func (f MachineFacts) activeMaintenance() *domain.MaintenanceEvent {
	for i := range f.Maintenance {
		if f.Maintenance[i].Active() {
			return &f.Maintenance[i]
		}
	}
	return nil
}

// readinessRule pairs a predicate with the state it yields. The rule slice is
// the tie-break policy: rules are evaluated top-down and the first match
// wins, so overlapping signals (a machine under maintenance that also holds a
// work order) resolve deterministically instead of erroring.
type readinessRule struct {
	State domain.Readiness
	Match func(MachineFacts) bool
}

var readinessRules = []readinessRule{
	{domain.ReadinessDown, func(f MachineFacts) bool {
		e := f.activeMaintenance()
		return e != nil && !e.Planned()
	}},
	{domain.ReadinessMaintenanceDue, func(f MachineFacts) bool {
		return f.activeMaintenance() != nil
	}},
	{domain.ReadinessDown, func(f MachineFacts) bool {
		return f.Machine.RawDown()
	}},
	{domain.ReadinessQCBlocked, func(f MachineFacts) bool {
		return f.Machine.QCFailed()
	}},
	{domain.ReadinessRunning, func(f MachineFacts) bool {
		return f.Machine.CurrentWorkOrderID != ""
	}},
	{domain.ReadinessSetupRequired, func(f MachineFacts) bool {
		return f.QueueDepth > 0 && !f.Machine.RawRunning()
	}},
}

// ClassifyReadiness derives the single readiness state for a machine from
// scratch. It is a pure function of the facts: no stored transition history,
// no randomness, so flapping input produces flapping output by design.
func ClassifyReadiness(f MachineFacts) domain.Readiness {
	for _, rule := range readinessRules {
		if rule.Match(f) {
			return rule.State
		}
	}
	return domain.ReadinessReady
}
