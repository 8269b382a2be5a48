package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventsTracker(t *testing.T) {
	tracker := &EventsTracker{}
	tracker.Refer(EventStageBeginBlock)
	require.Equal(t, EventStageBeginBlock, tracker.GetReference())
	for _, eventType := range []EventType{EventTypeVCBCredit, EventTypeSwap, EventTypeVCBCredit} {
		require.NoError(t, tracker.Add(&Event{EventType: eventType, Reference: tracker.GetReference()}))
	}
	require.Equal(t, 3, tracker.Len())
	require.Len(t, tracker.Events.OfType(EventTypeVCBCredit), 2)
	require.Empty(t, tracker.Events.OfType(EventTypeArbExecution))
	// a discarded change drops what it emitted
	tracker.Truncate(1)
	require.Equal(t, 1, tracker.Len())
	tracker.Truncate(5)
	require.Equal(t, 1, tracker.Len())
	// a fork's events are appended in order
	fork := &EventsTracker{Events: Events{{EventType: EventTypeBatchSwap}}}
	require.NoError(t, tracker.Merge(fork))
	require.NoError(t, tracker.Merge(nil))
	events := tracker.Reset()
	require.Equal(t, []EventType{EventTypeVCBCredit, EventTypeBatchSwap}, []EventType{events[0].EventType, events[1].EventType})
	require.Zero(t, tracker.Len())
	require.Empty(t, tracker.GetReference())
}

func TestEventsTrackerNil(t *testing.T) {
	var tracker *EventsTracker
	tests := []struct {
		name   string
		detail string
		call   func() ErrorI
	}{
		{
			name:   "add",
			detail: "a nil tracker can't capture events",
			call:   func() ErrorI { return tracker.Add(&Event{}) },
		},
		{
			name:   "merge",
			detail: "a nil tracker can't absorb a fork",
			call:   func() ErrorI { return tracker.Merge(&EventsTracker{}) },
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.ErrorIs(t, test.call(), ErrEmptyEventsTracker())
		})
	}
	// the accessors are nil safe
	tracker.Refer("ignored")
	tracker.Truncate(0)
	require.Empty(t, tracker.GetReference())
	require.Zero(t, tracker.Len())
	require.Nil(t, tracker.Reset())
}

func TestNewEvent(t *testing.T) {
	type msg struct {
		Amount uint64   `json:"amount"`
		Id     HexBytes `json:"id"`
	}
	e, err := NewEvent(EventTypeSwapClaim, 4, EventActionReference(2), &msg{Amount: 9, Id: HexBytes{0xab}})
	require.NoError(t, err)
	require.Equal(t, "action/2", e.Reference)
	require.JSONEq(t, `{"amount":9,"id":"ab"}`, string(e.Msg))
	got := new(msg)
	require.NoError(t, e.Decode(got))
	require.Equal(t, &msg{Amount: 9, Id: HexBytes{0xab}}, got)
}
