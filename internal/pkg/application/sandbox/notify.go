package sandbox

import (
	"context"

	"github.com/diwise/bubble-client/internal/pkg/application/subscriptions"
)

// WithNotifications decorates a store so that every successful change is
// reported to the notifier together with the stored state of the object.
func WithNotifications(store Store, notifier subscriptions.Notifier) Store {
	return &notifyingStore{Store: store, notifier: notifier}
}

type notifyingStore struct {
	Store
	notifier subscriptions.Notifier
}

func (s *notifyingStore) Create(ctx context.Context, typeName string, fields map[string]any) (string, error) {
	id, err := s.Store.Create(ctx, typeName, fields)
	if err == nil {
		s.notify(ctx, subscriptions.ObjectCreated, typeName, id)
	}
	return id, err
}

func (s *notifyingStore) Replace(ctx context.Context, typeName, id string, fields map[string]any) error {
	err := s.Store.Replace(ctx, typeName, id, fields)
	if err == nil {
		s.notify(ctx, subscriptions.ObjectUpdated, typeName, id)
	}
	return err
}

func (s *notifyingStore) Modify(ctx context.Context, typeName, id string, fields map[string]any) error {
	err := s.Store.Modify(ctx, typeName, id, fields)
	if err == nil {
		s.notify(ctx, subscriptions.ObjectUpdated, typeName, id)
	}
	return err
}

func (s *notifyingStore) Delete(ctx context.Context, typeName, id string) error {
	err := s.Store.Delete(ctx, typeName, id)
	if err == nil {
		s.notifier.ObjectChanged(ctx, subscriptions.ObjectDeleted, typeName, id, nil)
	}
	return err
}

func (s *notifyingStore) notify(ctx context.Context, event subscriptions.Event, typeName, id string) {
	obj, err := s.Store.Find(ctx, typeName, id)
	if err != nil {
		return
	}

	s.notifier.ObjectChanged(ctx, event, typeName, id, obj)
}
