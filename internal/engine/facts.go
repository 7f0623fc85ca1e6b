package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopfloor/floorstate/internal/domain"
)

// FactSource is the read boundary to the floor datastore. It is the only
// place the engine touches I/O; everything downstream is a pure function of
// one fetched fact set.
type FactSource interface {
	OpenBatches(ctx context.Context, window time.Duration) ([]domain.StageBatch, error)
	Machines(ctx context.Context) ([]domain.Machine, error)
	ActiveMaintenance(ctx context.Context, machineIDs []string) ([]domain.MaintenanceEvent, error)
	QueuedAssignments(ctx context.Context) ([]domain.QueuedAssignment, error)
	WorkOrders(ctx context.Context, ids []string) ([]domain.WorkOrderSummary, error)
	ItemMasters(ctx context.Context, codes []string) ([]domain.ItemMaster, error)
	TodayLogs(ctx context.Context, machineIDs []string, day time.Time) ([]domain.ProductionLogRow, error)
}

// FactSet is everything one refresh cycle fetched, with lookup maps built
// once so classification never re-scans slices. All derived entities of a
// cycle come from the same FactSet — facts from different points in time are
// never mixed within one snapshot.
type FactSet struct {
	Batches     []domain.StageBatch
	Machines    []domain.Machine
	Maintenance []domain.MaintenanceEvent
	Assignments []domain.QueuedAssignment
	Logs        []domain.ProductionLogRow

	Orders map[string]domain.WorkOrderSummary
	Items  map[string]domain.ItemMaster

	FetchedAt time.Time
}

// Collect performs all fetches for one cycle. Any failure aborts the whole
// collection: the caller keeps serving the previous snapshot instead of
// assembling a half-populated one.
func Collect(ctx context.Context, src FactSource, window time.Duration, day time.Time) (*FactSet, error) {
	batches, err := src.OpenBatches(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("fetch open batches: %w", err)
	}

	machines, err := src.Machines(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch machines: %w", err)
	}

	machineIDs := make([]string, 0, len(machines))
	for _, m := range machines {
		machineIDs = append(machineIDs, m.ID)
	}

	maint, err := src.ActiveMaintenance(ctx, machineIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch active maintenance: %w", err)
	}

	assignments, err := src.QueuedAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch queued assignments: %w", err)
	}

	// Work orders referenced by any batch, machine or queued assignment.
	orderIDs := map[string]struct{}{}
	for _, b := range batches {
		orderIDs[b.WorkOrderID] = struct{}{}
	}
	for _, m := range machines {
		if m.CurrentWorkOrderID != "" {
			orderIDs[m.CurrentWorkOrderID] = struct{}{}
		}
	}
	for _, a := range assignments {
		orderIDs[a.WorkOrderID] = struct{}{}
	}
	ids := make([]string, 0, len(orderIDs))
	for id := range orderIDs {
		ids = append(ids, id)
	}

	orders, err := src.WorkOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch work orders: %w", err)
	}
	orderByID := make(map[string]domain.WorkOrderSummary, len(orders))
	codes := make([]string, 0, len(orders))
	for _, o := range orders {
		orderByID[o.ID] = o
		if o.ItemCode != "" {
			codes = append(codes, o.ItemCode)
		}
	}

	items, err := src.ItemMasters(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("fetch item masters: %w", err)
	}
	itemByCode := make(map[string]domain.ItemMaster, len(items))
	for _, it := range items {
		itemByCode[it.Code] = it
	}

	logs, err := src.TodayLogs(ctx, machineIDs, day)
	if err != nil {
		return nil, fmt.Errorf("fetch today logs: %w", err)
	}

	return &FactSet{
		Batches:     batches,
		Machines:    machines,
		Maintenance: maint,
		Assignments: assignments,
		Logs:        logs,
		Orders:      orderByID,
		Items:       itemByCode,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// Order looks up a work order, reporting a soft miss for absent references.
func (f *FactSet) Order(id string) (domain.WorkOrderSummary, error) {
	o, ok := f.Orders[id]
	if !ok {
		return domain.WorkOrderSummary{}, &domain.WorkOrderNotFoundError{WorkOrderID: id}
	}
	return o, nil
}

// maintenanceByMachine indexes active maintenance events per machine.
func (f *FactSet) maintenanceByMachine() map[string][]domain.MaintenanceEvent {
	out := map[string][]domain.MaintenanceEvent{}
	for _, e := range f.Maintenance {
		if e.Active() {
			out[e.MachineID] = append(out[e.MachineID], e)
		}
	}
	return out
}

// assignmentsByMachine indexes queued assignments per machine.
func (f *FactSet) assignmentsByMachine() map[string][]domain.QueuedAssignment {
	out := map[string][]domain.QueuedAssignment{}
	for _, a := range f.Assignments {
		out[a.MachineID] = append(out[a.MachineID], a)
	}
	return out
}

// logsByMachine indexes today's production log rows per machine.
func (f *FactSet) logsByMachine() map[string][]domain.ProductionLogRow {
	out := map[string][]domain.ProductionLogRow{}
	for _, r := range f.Logs {
		out[r.MachineID] = append(out[r.MachineID], r)
	}
	return out
}

// openStagesByOrder maps each work order to the set of stages where it has an
// open batch. Stage membership is strictly this one-to-many relation; any
// single-field "current stage" hint from upstream is ignored.
func (f *FactSet) openStagesByOrder() map[string]map[domain.Stage]bool {
	out := map[string]map[domain.Stage]bool{}
	for _, b := range f.Batches {
		if !b.Open() {
			continue
		}
		set := out[b.WorkOrderID]
		if set == nil {
			set = map[domain.Stage]bool{}
			out[b.WorkOrderID] = set
		}
		set[b.Stage] = true
	}
	return out
}
