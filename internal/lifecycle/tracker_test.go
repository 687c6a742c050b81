package lifecycle

import (
	"testing"
)

func TestTracker_Transitions(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A")

	s, ok := tr.State("MKT-A")
	if !ok || s != StateDiscovered {
		t.Fatalf("state = %v, %v; want discovered", s, ok)
	}

	if !tr.MarkSubscribed("MKT-A") {
		t.Fatal("MarkSubscribed should succeed from discovered")
	}
	if !tr.MarkDetermined("MKT-A") {
		t.Fatal("MarkDetermined should succeed from subscribed")
	}
	if !tr.MarkUnsubscribed("MKT-A") {
		t.Fatal("MarkUnsubscribed should succeed from determined")
	}

	s, _ = tr.State("MKT-A")
	if s != StateUnsubscribed {
		t.Errorf("state = %v, want unsubscribed", s)
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A")

	// Determined requires subscribed first.
	if tr.MarkDetermined("MKT-A") {
		t.Error("MarkDetermined should fail from discovered")
	}
	// Unsubscribed requires determined first.
	if tr.MarkUnsubscribed("MKT-A") {
		t.Error("MarkUnsubscribed should fail from discovered")
	}
	// Unknown tickers never transition.
	if tr.MarkSubscribed("MKT-UNKNOWN") {
		t.Error("MarkSubscribed should fail for unknown ticker")
	}
}

func TestTracker_DeterminedExactlyOnce(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A")
	tr.MarkSubscribed("MKT-A")

	if !tr.MarkDetermined("MKT-A") {
		t.Fatal("first MarkDetermined should return true")
	}
	if tr.MarkDetermined("MKT-A") {
		t.Error("second MarkDetermined should return false")
	}
}

func TestTracker_TrackIdempotent(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A")
	tr.MarkSubscribed("MKT-A")
	tr.Track("MKT-A")

	s, _ := tr.State("MKT-A")
	if s != StateSubscribed {
		t.Errorf("re-tracking reset state to %v", s)
	}
	if tr.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", tr.Remaining())
	}
}

func TestTracker_IsTerminal(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A")
	tr.MarkSubscribed("MKT-A")

	if tr.IsTerminal("MKT-A") {
		t.Error("subscribed market is not terminal")
	}

	tr.MarkDetermined("MKT-A")
	tr.MarkUnsubscribed("MKT-A")

	if !tr.IsTerminal("MKT-A") {
		t.Error("unsubscribed market is terminal")
	}
}

func TestTracker_GlobalTermination(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A", "MKT-B", "MKT-C")
	for _, ticker := range []string{"MKT-A", "MKT-B", "MKT-C"} {
		tr.MarkSubscribed(ticker)
	}

	finish := func(ticker string) {
		tr.MarkDetermined(ticker)
		tr.MarkUnsubscribed(ticker)
	}

	finish("MKT-A")
	finish("MKT-B")

	select {
	case <-tr.Done():
		t.Fatal("Done fired with a market still subscribed")
	default:
	}
	if tr.AllUnsubscribed() {
		t.Fatal("AllUnsubscribed true with a market still subscribed")
	}

	finish("MKT-C")

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done should fire once every market is unsubscribed")
	}
	if !tr.AllUnsubscribed() {
		t.Error("AllUnsubscribed should be true")
	}
	if tr.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", tr.Remaining())
	}
}

func TestTracker_AllUnsubscribedEmptyTracker(t *testing.T) {
	tr := NewTracker(nil)
	if tr.AllUnsubscribed() {
		t.Error("empty tracker must not report all unsubscribed")
	}
}

func TestTracker_Active(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("MKT-A", "MKT-B", "MKT-C")
	tr.MarkSubscribed("MKT-A")
	tr.MarkSubscribed("MKT-B")
	tr.MarkDetermined("MKT-B")
	tr.MarkUnsubscribed("MKT-B")

	active := tr.Active()
	if len(active) != 2 {
		t.Fatalf("Active = %v, want 2 tickers", active)
	}
	for _, ticker := range active {
		if ticker == "MKT-B" {
			t.Error("unsubscribed market listed as active")
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDiscovered, "discovered"},
		{StateSubscribed, "subscribed"},
		{StateDetermined, "determined"},
		{StateUnsubscribed, "unsubscribed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
