package supervisor

import (
	"fmt"
	"testing"
)

func TestStateTracker_UnknownBotIsDisconnected(t *testing.T) {
	st := newStateTracker()
	if got := st.getState("ghost"); got != StateDisconnected {
		t.Errorf("getState(ghost) = %s, want disconnected", got)
	}
	if got := st.getTransitions("ghost"); got != nil {
		t.Errorf("expected nil transitions, got %v", got)
	}
}

func TestStateTracker_RecordsTransitions(t *testing.T) {
	st := newStateTracker()
	st.setState("alice", StateConnecting, "start")
	st.setState("alice", StateConnected, "session open")
	st.setState("alice", StateConnected, "duplicate") // no-op

	if got := st.getState("alice"); got != StateConnected {
		t.Errorf("state = %s, want connected", got)
	}
	trs := st.getTransitions("alice")
	if len(trs) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(trs))
	}
	if trs[0].From != StateDisconnected || trs[0].To != StateConnecting {
		t.Errorf("unexpected first transition: %+v", trs[0])
	}
	if trs[1].To != StateConnected || trs[1].Reason != "session open" {
		t.Errorf("unexpected second transition: %+v", trs[1])
	}
}

func TestStateTracker_RingBufferWraps(t *testing.T) {
	st := newStateTracker()
	states := []ConnState{StateConnecting, StateConnected, StateReconnecting}
	for i := 0; i < stateTransitionBufferSize+10; i++ {
		st.setState("alice", states[i%len(states)], fmt.Sprintf("step %d", i))
	}
	trs := st.getTransitions("alice")
	if len(trs) != stateTransitionBufferSize {
		t.Fatalf("expected %d transitions, got %d", stateTransitionBufferSize, len(trs))
	}
	// Entries must be chronological: each From matches the previous To.
	for i := 1; i < len(trs); i++ {
		if trs[i].From != trs[i-1].To {
			t.Fatalf("transition %d not contiguous: %+v then %+v", i, trs[i-1], trs[i])
		}
	}
}

func TestStateTracker_Remove(t *testing.T) {
	st := newStateTracker()
	st.setState("alice", StateConnected, "x")
	st.remove("alice")
	if got := st.getState("alice"); got != StateDisconnected {
		t.Errorf("state after remove = %s, want disconnected", got)
	}
}

func TestEventLog_RingBufferWraps(t *testing.T) {
	el := newEventLog()
	for i := 0; i < eventBufferSize+5; i++ {
		el.log("alice", EventReconnecting, fmt.Sprintf("attempt %d", i))
	}
	events := el.getEvents("alice")
	if len(events) != eventBufferSize {
		t.Fatalf("expected %d events, got %d", eventBufferSize, len(events))
	}
	if events[0].Details != "attempt 5" {
		t.Errorf("oldest retained event = %q, want attempt 5", events[0].Details)
	}
	if events[len(events)-1].Details != fmt.Sprintf("attempt %d", eventBufferSize+4) {
		t.Errorf("newest event = %q", events[len(events)-1].Details)
	}
}

func TestEventLog_RemoveAndUnknown(t *testing.T) {
	el := newEventLog()
	if got := el.getEvents("ghost"); got != nil {
		t.Errorf("expected nil events for unknown bot, got %v", got)
	}
	el.log("alice", EventConnected, "")
	el.remove("alice")
	if got := el.getEvents("alice"); got != nil {
		t.Errorf("expected nil events after remove, got %v", got)
	}
}
