package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/internal/kafka"
	"github.com/shopfloor/floorstate/pkg/telemetry"
)

const alertTopic = "floor.alerts"

// AlertKind classifies a floor alert event.
type AlertKind string

const (
	AlertMachineDown       AlertKind = "machine_down"
	AlertMachineQCBlocked  AlertKind = "machine_qc_blocked"
	AlertMachineRecovered  AlertKind = "machine_recovered"
	AlertBottleneckChanged AlertKind = "bottleneck_changed"
)

// AlertEvent is one state transition observed between two consecutive
// snapshots, published for downstream automation (andon boards, paging).
type AlertEvent struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	EntityID string    `json:"entity_id"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// AlertPublisher diffs consecutive snapshots and emits an event per
// transition. Snapshots themselves stay stateless; the previous snapshot is
// the only history consulted.
type AlertPublisher struct {
	producer kafka.Producer
	logger   *slog.Logger
}

func NewAlertPublisher(producer kafka.Producer, logger *slog.Logger) *AlertPublisher {
	return &AlertPublisher{producer: producer, logger: logger}
}

// PublishTransitions compares prev and cur and publishes one event per
// detected transition. A nil prev means this is the first snapshot of the
// process lifetime; nothing is emitted, to avoid an alert storm on startup.
// Publishing is best effort: failures are counted and logged, never returned.
func (p *AlertPublisher) PublishTransitions(ctx context.Context, prev, cur *domain.Snapshot) {
	if prev == nil || cur == nil {
		return
	}

	prevMachines := make(map[string]domain.MachineState, len(prev.Machines))
	for _, ms := range prev.Machines {
		prevMachines[ms.MachineID] = ms
	}

	for _, ms := range cur.Machines {
		before, seen := prevMachines[ms.MachineID]
		if !seen {
			continue
		}
		if kind, detail, ok := machineTransition(before, ms); ok {
			p.emit(ctx, AlertEvent{
				ID:       uuid.NewString(),
				Kind:     kind,
				EntityID: ms.MachineID,
				Detail:   detail,
				At:       cur.GeneratedAt,
			})
		}
	}

	if before, after := topBottleneck(prev), topBottleneck(cur); after != "" && after != before {
		p.emit(ctx, AlertEvent{
			ID:       uuid.NewString(),
			Kind:     AlertBottleneckChanged,
			EntityID: after,
			Detail:   fmt.Sprintf("top bottleneck moved from %q to %q", before, after),
			At:       cur.GeneratedAt,
		})
	}
}

// machineTransition reports the alert-worthy edge between two readiness
// observations of the same machine, if any.
func machineTransition(before, after domain.MachineState) (AlertKind, string, bool) {
	if before.Readiness == after.Readiness {
		return "", "", false
	}
	switch {
	case after.Readiness == domain.ReadinessDown:
		return AlertMachineDown, fmt.Sprintf("%s went down (was %s)", after.Name, before.Readiness), true
	case after.Readiness == domain.ReadinessQCBlocked:
		return AlertMachineQCBlocked, fmt.Sprintf("%s blocked by qc (was %s)", after.Name, before.Readiness), true
	case before.Readiness.Blocked() && !after.Readiness.Blocked():
		return AlertMachineRecovered, fmt.Sprintf("%s recovered to %s", after.Name, after.Readiness), true
	}
	return "", "", false
}

func topBottleneck(snap *domain.Snapshot) string {
	if len(snap.Bottlenecks) == 0 {
		return ""
	}
	return snap.Bottlenecks[0].ID
}

func (p *AlertPublisher) emit(ctx context.Context, ev AlertEvent) {
	ctx, span := otel.Tracer("alerts").Start(ctx, "alerts.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("alert.kind", string(ev.Kind)),
		attribute.String("alert.entity_id", ev.EntityID),
	)

	payload, err := json.Marshal(ev)
	if err != nil {
		telemetry.AlertPublishErrors.Inc()
		p.logger.Error("encode alert event", slog.String("error", err.Error()))
		return
	}
	if err := p.producer.Publish(ctx, alertTopic, ev.EntityID, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert publish failed")
		telemetry.AlertPublishErrors.Inc()
		p.logger.Error("publish alert event",
			slog.String("kind", string(ev.Kind)),
			slog.String("entity_id", ev.EntityID),
			slog.String("error", err.Error()),
		)
		return
	}
	telemetry.AlertsPublished.WithLabelValues(string(ev.Kind)).Inc()
}
