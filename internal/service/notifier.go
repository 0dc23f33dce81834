package service

import (
	"context"
	"encoding/json"

	"go-material-store/internal/events"
	"go-material-store/internal/model"
	"go-material-store/internal/ws"
	"go-material-store/pkg/logger"

	"github.com/google/uuid"
)

const (
	KindOrderConfirmed = "order_confirmed"
	KindOrderShipped   = "order_shipped"
	KindOrderDelivered = "order_delivered"
	KindOrderCancelled = "order_cancelled"
)

var eventTypeByKind = map[string]string{
	KindOrderConfirmed: events.EventOrderConfirmed,
	KindOrderShipped:   events.EventOrderShipped,
	KindOrderDelivered: events.EventOrderDelivered,
	KindOrderCancelled: events.EventOrderCancelled,
}

// Notifier is fire-and-forget. Implementations must not block or fail the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any)
}

type eventPublisher interface {
	Publish(key string, env events.Envelope) error
}

// Dispatcher pushes notifications to the user's websocket sessions and, when configured, to Kafka.
type Dispatcher struct {
	hub       *ws.Hub
	publisher eventPublisher
	logg      *logger.Logger
}

func NewDispatcher(hub *ws.Hub, publisher eventPublisher, logg *logger.Logger) *Dispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{hub: hub, publisher: publisher, logg: logg}
}

func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) {
	ctx = d.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "kind": kind})

	if d.hub != nil {
		msg, err := json.Marshal(map[string]any{"type": "notification", "kind": kind, "data": payload})
		if err != nil {
			d.logg.Error(ctx, "encode notification", err)
		} else if !d.hub.SendToUser(userID.String(), msg) {
			d.logg.Warn(ctx, "websocket outbox full, notification dropped")
		}
	}

	if d.publisher == nil {
		return
	}
	eventType, ok := eventTypeByKind[kind]
	if !ok {
		d.logg.Warn(ctx, "no event type for notification kind")
		return
	}
	orderID, _ := payload["order_id"].(string)
	orderNumber, _ := payload["order_number"].(string)
	env, err := events.NewEnvelope(eventType, orderID, events.OrderNotificationPayload{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		UserID:      userID.String(),
		Kind:        kind,
		Data:        payload,
	})
	if err != nil {
		d.logg.Error(ctx, "build notification event", err)
		return
	}
	if err := d.publisher.Publish(orderID, env); err != nil {
		d.logg.Error(ctx, "publish notification event", err)
	}
}

// orderPayload is the common notification body for order transitions.
func orderPayload(order *model.Order, extra map[string]any) map[string]any {
	payload := map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
		"total":        order.TotalAmount,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, string, map[string]any) {}
