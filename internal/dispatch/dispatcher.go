package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"complaintrack/server/internal/presence"
	"complaintrack/server/internal/realtime"
	"complaintrack/server/internal/telemetry"
)

// Dispatcher routes notification events to live connections through the
// presence registry. Delivery is best-effort: an offline recipient is not an
// error, and a slow connection drops frames rather than blocking intake.
type Dispatcher struct {
	registry presence.Registry
	emitter  telemetry.EventEmitter

	dispatched metric.Int64Counter
	misses     metric.Int64Counter
}

// NewDispatcher builds a Dispatcher over registry. emitter may be nil to
// disable telemetry.
func NewDispatcher(registry presence.Registry, emitter telemetry.EventEmitter) *Dispatcher {
	meter := otel.Meter("complaintrack/dispatch")
	dispatched, err := meter.Int64Counter("dispatch.events",
		metric.WithDescription("Notification events fanned out to live connections"))
	if err != nil {
		log.Printf("dispatch: create events counter: %v", err)
	}
	misses, err := meter.Int64Counter("dispatch.delivery_misses",
		metric.WithDescription("Events dispatched while the target had no live connection"))
	if err != nil {
		log.Printf("dispatch: create misses counter: %v", err)
	}
	return &Dispatcher{
		registry:   registry,
		emitter:    emitter,
		dispatched: dispatched,
		misses:     misses,
	}
}

// BroadcastToRole sends event with payload to every live connection whose
// handshake role matches role. Returns the number of connections the event
// was queued on.
func (d *Dispatcher) BroadcastToRole(ctx context.Context, role, event string, payload any) int {
	conns := d.registry.LookupByRole(role)
	for _, c := range conns {
		c.Send(event, payload)
	}
	d.record(ctx, event, "role:"+role, len(conns))
	return len(conns)
}

// SendToIdentity sends event with payload to every live connection held by
// identityID. An identity with no open connection is a delivery miss, not an
// error; the notification is simply not delivered live.
func (d *Dispatcher) SendToIdentity(ctx context.Context, identityID int, event string, payload any) int {
	conns := d.registry.Lookup(identityID)
	for _, c := range conns {
		c.Send(event, payload)
	}
	d.record(ctx, event, "identity:"+strconv.Itoa(identityID), len(conns))
	return len(conns)
}

// NotifyNewComplaint fans a newComplaint notice out to all connected admins.
func (d *Dispatcher) NotifyNewComplaint(ctx context.Context, notice ComplaintNotice) int {
	return d.BroadcastToRole(ctx, "admin", realtime.EventNewComplaint, notice)
}

// NotifyStatusUpdate delivers a statusUpdate notice to the complaint owner.
func (d *Dispatcher) NotifyStatusUpdate(ctx context.Context, ownerID int, notice StatusNotice) int {
	return d.SendToIdentity(ctx, ownerID, realtime.EventStatusUpdate, notice)
}

func (d *Dispatcher) record(ctx context.Context, event, target string, delivered int) {
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("target", target),
	)
	if d.dispatched != nil {
		d.dispatched.Add(ctx, 1, attrs)
	}
	eventType := "event_dispatched"
	if delivered == 0 {
		eventType = "delivery_miss"
		if d.misses != nil {
			d.misses.Add(ctx, 1, attrs)
		}
	}
	meta, err := json.Marshal(map[string]any{
		"event":     event,
		"target":    target,
		"delivered": delivered,
	})
	if err != nil {
		meta = nil
	}
	telemetry.EmitAsync(d.emitter, ctx, &telemetry.Event{
		EventType: eventType,
		Source:    "dispatch",
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	})
}
