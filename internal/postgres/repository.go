package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopfloor/floorstate/internal/domain"
)

// FactRepository reads raw floor facts from PostgreSQL. It is a pure I/O
// boundary: no derivation logic lives here, and nothing is ever written.
// It satisfies engine.FactSource.
type FactRepository struct {
	pool *pgxpool.Pool
}

// NewFactRepository wraps a pgxpool.
func NewFactRepository(pool *pgxpool.Pool) *FactRepository {
	return &FactRepository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// OpenBatches returns batches without an end timestamp that entered within
// the window (or carry no entry timestamp at all).
func (r *FactRepository) OpenBatches(ctx context.Context, window time.Duration) ([]domain.StageBatch, error) {
	since := time.Now().UTC().Add(-window)
	rows, err := r.pool.Query(ctx, `
		SELECT id, work_order_id, stage, quantity, entered_at, ended_at, status
		FROM stage_batches
		WHERE ended_at IS NULL AND (entered_at IS NULL OR entered_at >= $1)
		ORDER BY entered_at NULLS LAST, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query open batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.StageBatch
	for rows.Next() {
		var b domain.StageBatch
		var entered *time.Time
		var stage, status string
		if err := rows.Scan(&b.ID, &b.WorkOrderID, &stage, &b.Quantity, &entered, &b.EndedAt, &status); err != nil {
			return nil, fmt.Errorf("scan stage batch: %w", err)
		}
		if entered != nil {
			b.EnteredAt = *entered
		}
		b.Stage = domain.Stage(stage)
		b.Status = domain.BatchStatus(status)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Machines returns every machine record.
func (r *FactRepository) Machines(ctx context.Context) ([]domain.Machine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, raw_status, current_work_order_id, job_started_at, qc_flag
		FROM machines
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query machines: %w", err)
	}
	defer rows.Close()

	var machines []domain.Machine
	for rows.Next() {
		var m domain.Machine
		var workOrder, qcFlag *string
		if err := rows.Scan(&m.ID, &m.Name, &m.RawStatus, &workOrder, &m.JobStartedAt, &qcFlag); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		if workOrder != nil {
			m.CurrentWorkOrderID = *workOrder
		}
		if qcFlag != nil {
			m.QCFlag = *qcFlag
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// ActiveMaintenance returns open maintenance events for the given machines.
func (r *FactRepository) ActiveMaintenance(ctx context.Context, machineIDs []string) ([]domain.MaintenanceEvent, error) {
	if len(machineIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, machine_id, reason, started_at, ended_at
		FROM maintenance_events
		WHERE ended_at IS NULL AND machine_id = ANY($1)
		ORDER BY started_at, id
	`, machineIDs)
	if err != nil {
		return nil, fmt.Errorf("query active maintenance: %w", err)
	}
	defer rows.Close()

	var events []domain.MaintenanceEvent
	for rows.Next() {
		var e domain.MaintenanceEvent
		if err := rows.Scan(&e.ID, &e.MachineID, &e.Reason, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// QueuedAssignments returns assignments still waiting to start.
func (r *FactRepository) QueuedAssignments(ctx context.Context) ([]domain.QueuedAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, machine_id, work_order_id, scheduled_at, status
		FROM queued_assignments
		WHERE status = 'scheduled'
		ORDER BY scheduled_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query queued assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.QueuedAssignment
	for rows.Next() {
		var a domain.QueuedAssignment
		if err := rows.Scan(&a.ID, &a.MachineID, &a.WorkOrderID, &a.ScheduledAt, &a.Status); err != nil {
			return nil, fmt.Errorf("scan queued assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// WorkOrders returns summaries for the given IDs. IDs without a matching row
// are simply absent from the result; the engine treats that as a soft
// inconsistency, not an error.
func (r *FactRepository) WorkOrders(ctx context.Context, ids []string) ([]domain.WorkOrderSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_code, due_date, quantity, material_qc_passed,
		       first_piece_qc_passed, cycle_time_sec, external_process_name
		FROM work_orders
		WHERE id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query work orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.WorkOrderSummary
	for rows.Next() {
		o, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ItemMasters returns item-master records for the given codes.
func (r *FactRepository) ItemMasters(ctx context.Context, codes []string) ([]domain.ItemMaster, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT code, description, cycle_time_sec
		FROM item_master
		WHERE code = ANY($1)
		ORDER BY code
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("query item master: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemMaster
	for rows.Next() {
		var it domain.ItemMaster
		var desc *string
		var cycle *float64
		if err := rows.Scan(&it.Code, &desc, &cycle); err != nil {
			return nil, fmt.Errorf("scan item master: %w", err)
		}
		if desc != nil {
			it.Description = *desc
		}
		if cycle != nil {
			it.CycleTimeSec = *cycle
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// TodayLogs returns production log rows for the given machines on the given
// production day.
func (r *FactRepository) TodayLogs(ctx context.Context, machineIDs []string, day time.Time) ([]domain.ProductionLogRow, error) {
	if len(machineIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT machine_id, work_order_id, log_date, logged_at, cycle_time_sec,
		       pieces_produced, downtime_minutes, downtime_reason, downtime_resolved
		FROM production_logs
		WHERE machine_id = ANY($1) AND log_date = $2
		ORDER BY logged_at, machine_id
	`, machineIDs, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query production logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ProductionLogRow
	for rows.Next() {
		var l domain.ProductionLogRow
		var cycle *float64
		var reason *string
		if err := rows.Scan(&l.MachineID, &l.WorkOrderID, &l.LogDate, &l.LoggedAt, &cycle,
			&l.PiecesProduced, &l.DowntimeMinutes, &reason, &l.DowntimeResolved); err != nil {
			return nil, fmt.Errorf("scan production log: %w", err)
		}
		if cycle != nil {
			l.CycleTimeSec = *cycle
		}
		if reason != nil {
			l.DowntimeReason = *reason
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// scanWorkOrder reads a work-order row from any pgx row type.
func scanWorkOrder(row interface {
	Scan(...any) error
}) (domain.WorkOrderSummary, error) {
	var o domain.WorkOrderSummary
	var cycle *float64
	var extProc *string
	err := row.Scan(
		&o.ID, &o.ItemCode, &o.DueDate, &o.Quantity,
		&o.MaterialQCPassed, &o.FirstPieceQCPassed, &cycle, &extProc,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return o, &domain.WorkOrderNotFoundError{WorkOrderID: "unknown"}
		}
		return o, fmt.Errorf("scan work order: %w", err)
	}
	if cycle != nil {
		o.CycleTimeSec = *cycle
	}
	if extProc != nil {
		o.ExternalProcessName = *extProc
	}
	return o, nil
}
