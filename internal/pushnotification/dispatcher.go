package pushnotification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/conc"

	"github.com/chatopsdesk/chatopsdesk/internal/eventbus"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
)

type Notifier interface {
	SendToAll(ctx context.Context, payload *NotificationPayload)
}

// Dispatcher turns paused and failed task transitions into push
// notifications.
type Dispatcher struct {
	eventBus *eventbus.Bus[task.Event]
	notifier Notifier
}

func NewDispatcher(eventBus *eventbus.Bus[task.Event], notifier Notifier) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		notifier: notifier,
	}
}

// Start consumes events until ctx is done. Notifications are sent off the
// event loop so a slow push service does not hold back later events; Start
// waits for them before returning.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.SubscribeQueue()
	defer d.eventBus.Unsubscribe(subID)

	var wg conc.WaitGroup
	defer wg.Wait()

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				slog.Warn("push notification dispatcher lost its subscription")
				return
			}
			payload := payloadFor(event)
			if payload == nil {
				continue
			}
			wg.Go(func() {
				d.notifier.SendToAll(context.WithoutCancel(ctx), payload)
			})
		}
	}
}

func payloadFor(event task.Event) *NotificationPayload {
	if event.Kind != task.EventStatus {
		return nil
	}
	switch event.Status {
	case task.StatusPaused:
		body := fmt.Sprintf("Task %s paused", event.ID)
		if reason, _ := event.Meta["reason"].(string); reason != "" {
			body += " (" + reason + ")"
		}
		if required, _ := event.Meta["required"].([]string); len(required) > 0 {
			body += ": needs " + strings.Join(required, ", ")
		}
		return &NotificationPayload{
			Title: "Action required",
			Body:  body,
			URL:   "/api/tasks/" + event.ID,
			Tag:   event.ID,
		}
	case task.StatusFailed:
		body := fmt.Sprintf("Task %s failed", event.ID)
		if code, _ := event.Meta["code"].(string); code != "" {
			body += " (" + code + ")"
		}
		return &NotificationPayload{
			Title: "Task failed",
			Body:  body,
			URL:   "/api/tasks/" + event.ID,
			Tag:   event.ID,
		}
	default:
		return nil
	}
}
