package lib

import (
	"encoding/json"
	"strconv"
)

type EventType string

const (
	EventStageBeginBlock = "begin_block"
	EventStageEndBlock   = "end_block"

	EventTypePositionOpen      EventType = "position-open"
	EventTypePositionClose     EventType = "position-close"
	EventTypePositionWithdraw  EventType = "position-withdraw"
	EventTypePositionExecution EventType = "position-execution"
	EventTypeSwap              EventType = "swap"
	EventTypeSwapClaim         EventType = "swap-claim"
	EventTypeBatchSwap         EventType = "batch-swap"
	EventTypeArbExecution      EventType = "arb-execution"
	EventTypeVCBCredit         EventType = "vcb-credit"
	EventTypeVCBDebit          EventType = "vcb-debit"
)

// EventActionReference() is the reference of the events emitted by the action at the index of a block
func EventActionReference(index int) string { return "action/" + strconv.Itoa(index) }

// Event is a record of a state change made while applying a block
type Event struct {
	EventType EventType       `json:"eventType"`
	Height    uint64          `json:"height"`
	Reference string          `json:"reference"` // 'begin_block' / 'action/<index>' / 'end_block'
	Msg       json.RawMessage `json:"msg,omitempty"`
}

// NewEvent() creates an event with its message encoded as json
func NewEvent(eventType EventType, height uint64, reference string, msg any) (*Event, ErrorI) {
	bz, err := MarshalJSON(msg)
	if err != nil {
		return nil, err
	}
	return &Event{EventType: eventType, Height: height, Reference: reference, Msg: bz}, nil
}

// Decode() unmarshals the message of the event into ptr
func (e *Event) Decode(ptr any) ErrorI { return UnmarshalJSON(e.Msg, ptr) }

type Events []*Event

// OfType() filters the events by type
func (e Events) OfType(t EventType) (filtered Events) {
	for _, event := range e {
		if event.EventType == t {
			filtered = append(filtered, event)
		}
	}
	return
}

type EventsTracker struct {
	Reference string // the 'begin_block' / action index / 'end_block' -> reference for events
	Events    Events // the actual events
}

// Add() adds an event to the tracker
func (t *EventsTracker) Add(event *Event) (e ErrorI) {
	if t == nil {
		return ErrEmptyEventsTracker()
	}
	t.Events = append(t.Events, event)
	return
}

// Merge() appends the events captured by another tracker, used when a forked state is written back
func (t *EventsTracker) Merge(o *EventsTracker) ErrorI {
	if t == nil {
		return ErrEmptyEventsTracker()
	}
	if o != nil {
		t.Events = append(t.Events, o.Events...)
	}
	return nil
}

// Refer() sets a reference string for the event tracker
func (t *EventsTracker) Refer(s string) {
	if t == nil {
		return
	}
	t.Reference = s
}

// GetReference() is an accessor for the reference string
func (t *EventsTracker) GetReference() string {
	if t == nil {
		return ""
	}
	return t.Reference
}

// Len() is the number of events captured so far
func (t *EventsTracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Events)
}

// Truncate() drops the events captured after the first n, used when the change that emitted them is discarded
func (t *EventsTracker) Truncate(n int) {
	if t == nil || n >= len(t.Events) {
		return
	}
	clear(t.Events[n:])
	t.Events = t.Events[:n]
}

// Reset() resets the event tracker and returns the captured events
func (t *EventsTracker) Reset() (e Events) {
	if t == nil {
		return
	}
	// save
	e = t.Events
	// reset
	t.Events, t.Reference = nil, ""
	// exit
	return
}
