package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Event string

const (
	ObjectCreated Event = "created"
	ObjectUpdated Event = "updated"
	ObjectDeleted Event = "deleted"
)

// Notifier posts a notification to a webhook endpoint whenever an object
// is changed, in the order the changes were made.
type Notifier interface {
	Start() error
	Stop() error

	ObjectChanged(ctx context.Context, event Event, typeName, id string, fields map[string]any)
}

type Notification struct {
	Event      Event          `json:"event"`
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Object     map[string]any `json:"object,omitempty"`
	NotifiedAt string         `json:"notifiedAt"`
}

var tracer = otel.Tracer("bubble-sandbox/notifier")

type action func()

type notifier struct {
	mu       sync.RWMutex
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notification endpoint is required")
	}

	return &notifier{
		endpoint: endpoint,
	}, nil
}

func (n *notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true
	n.queue = make(chan action, 32)

	go run(n.queue)

	return nil
}

// Stop blocks until every queued notification has been posted. Changes
// reported after Stop returns are dropped.
func (n *notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) ObjectChanged(ctx context.Context, event Event, typeName, id string, fields map[string]any) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"notify",
		trace.WithAttributes(
			attribute.String("object-type", typeName),
			attribute.String("object-id", id),
		),
	)

	notification := Notification{
		Event:      event,
		Type:       typeName,
		ID:         id,
		Object:     fields,
		NotifiedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = postNotification(ctx, notification, n.endpoint)
		if err != nil {
			logger.Error("failed to post notification", "type", typeName, "id", id, "err", err.Error())
		}
	}
}

func postNotification(ctx context.Context, notification Notification, endpoint string) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint responded with status code %d", resp.StatusCode)
	}

	return nil
}

func run(queue chan action) {
	for action := range queue {
		if action == nil {
			return
		}

		action()
	}
}
