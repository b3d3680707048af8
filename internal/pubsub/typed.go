package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// EventInfo describes a registered event for documentation and tooling.
type EventInfo struct {
	Name          string
	Description   string
	TypeName      string
	PayloadFields []string
}

var (
	catalogMu sync.RWMutex
	catalog   = map[string]EventInfo{}
)

// Event[T] wraps a topic name and provides type-safe publishing.
type Event[T any] struct {
	topicName string
}

// NewEvent creates a typed event and records it in the event catalog. The
// payload field list is taken from the json tags of T. Registering the
// same name twice panics, since events are defined at package level.
func NewEvent[T any](name string, description string) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make([]string, 0)
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			jsonTag := t.Field(i).Tag.Get("json")
			if jsonTag == "" || jsonTag == "-" {
				continue
			}
			fieldName, _, _ := strings.Cut(jsonTag, ",")
			fields = append(fields, fieldName)
		}
	}

	catalogMu.Lock()
	defer catalogMu.Unlock()
	if _, exists := catalog[name]; exists {
		panic(fmt.Sprintf("pubsub: event %q registered twice", name))
	}
	catalog[name] = EventInfo{
		Name:          name,
		Description:   description,
		TypeName:      t.Name(),
		PayloadFields: fields,
	}

	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Decode unmarshals a message payload published for this event.
func (e Event[T]) Decode(msg Message) (T, error) {
	var payload T
	if msg.Topic != "" && msg.Topic != e.topicName {
		return payload, fmt.Errorf("message topic %q does not match event %q", msg.Topic, e.topicName)
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.topicName, err)
	}
	return payload, nil
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], accountID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:     event.Name(),
		AccountID: accountID,
		Payload:   data,
	})
}

// Events returns every registered event sorted by name.
func Events() []EventInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()

	infos := make([]EventInfo, 0, len(catalog))
	for _, info := range catalog {
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b EventInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos
}
