// Package fanout carries realtime chat events from the service that commits a
// change to every websocket session subscribed to the affected topic.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	EventNewMessage           = "newMessage"
	EventMessageEdited        = "messageEdited"
	EventMessageDeleted       = "messageDeleted"
	EventConversationUpdated  = "conversationUpdated"
	EventMemberJoined         = "memberJoined"
	EventMemberLeft           = "memberLeft"
	EventMemberRemoved        = "memberRemoved"
	EventOwnershipTransferred = "ownershipTransferred"
	EventJoinRequestCreated   = "joinRequestCreated"
	EventJoinRequestResolved  = "joinRequestResolved"
)

const roomTopicPrefix = "room:"

type Event struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

func NewEvent(topic, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	return Event{Topic: topic, Type: eventType, Data: raw}, nil
}

func RoomTopic(roomId int) string {
	return roomTopicPrefix + strconv.Itoa(roomId)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink receives events for delivery to locally connected sessions.
type Sink interface {
	Deliver(ev Event)
}

// Direct hands events straight to a local sink. It serves single-instance
// deployments.
type Direct struct {
	sink Sink
}

func NewDirect(sink Sink) *Direct {
	return &Direct{sink: sink}
}

func (d *Direct) Publish(_ context.Context, ev Event) error {
	d.sink.Deliver(ev)
	return nil
}

// Multi publishes every event to each publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func decode(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Topic == "" || ev.Type == "" {
		return Event{}, errors.New("decode event: missing topic or type")
	}

	return ev, nil
}
