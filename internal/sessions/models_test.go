package sessions

import "testing"

func TestCanTransition_CallForwardOnly(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRinging, true},
		{StatusPending, StatusCompleted, true}, // skipped intermediate events
		{StatusRinging, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusNoAnswer, true},
		{StatusRinging, StatusPending, false},
		{StatusInProgress, StatusRinging, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusBusy, StatusCompleted, false},
		{StatusFailed, StatusInProgress, false},
	}
	for _, c := range cases {
		if got := CanTransition(KindCall, c.from, c.to); got != c.want {
			t.Fatalf("call %s -> %s: expected %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestCanTransition_MessageForwardOnly(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusSent, true},
		{StatusQueued, StatusDelivered, true},
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusUndelivered, true},
		{StatusSent, StatusQueued, false},
		{StatusDelivered, StatusFailed, false},
		{StatusDelivered, StatusDelivered, false},
		{StatusReceived, StatusDelivered, false},
	}
	for _, c := range cases {
		if got := CanTransition(KindMessage, c.from, c.to); got != c.want {
			t.Fatalf("message %s -> %s: expected %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestCanTransition_ReceivedIsNeverATarget(t *testing.T) {
	for _, from := range []Status{StatusQueued, StatusSent} {
		if CanTransition(KindMessage, from, StatusReceived) {
			t.Fatalf("expected %s -> received to be illegal", from)
		}
	}
}

func TestCanTransition_CrossKindStatusesRejected(t *testing.T) {
	if CanTransition(KindCall, StatusPending, StatusDelivered) {
		t.Fatalf("delivered is not a call status")
	}
	if CanTransition(KindMessage, StatusQueued, StatusRinging) {
		t.Fatalf("ringing is not a message status")
	}
}

func TestIsTerminal(t *testing.T) {
	terminalCalls := []Status{StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed}
	for _, s := range terminalCalls {
		if !IsTerminal(KindCall, s) {
			t.Fatalf("expected call %s terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusRinging, StatusInProgress} {
		if IsTerminal(KindCall, s) {
			t.Fatalf("expected call %s non-terminal", s)
		}
	}

	terminalMsgs := []Status{StatusDelivered, StatusUndelivered, StatusFailed, StatusReceived}
	for _, s := range terminalMsgs {
		if !IsTerminal(KindMessage, s) {
			t.Fatalf("expected message %s terminal", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusSent} {
		if IsTerminal(KindMessage, s) {
			t.Fatalf("expected message %s non-terminal", s)
		}
	}
}

func TestLegalPredecessors(t *testing.T) {
	preds := LegalPredecessors(KindCall, StatusCompleted)
	want := map[Status]bool{StatusPending: true, StatusRinging: true, StatusInProgress: true}
	if len(preds) != len(want) {
		t.Fatalf("expected %d predecessors, got %v", len(want), preds)
	}
	for _, p := range preds {
		if !want[p] {
			t.Fatalf("unexpected predecessor %s", p)
		}
	}

	if got := LegalPredecessors(KindMessage, StatusReceived); len(got) != 0 {
		t.Fatalf("received must have no predecessors, got %v", got)
	}
}

func TestInitialOutboundStatus(t *testing.T) {
	if InitialOutboundStatus(KindCall) != StatusPending {
		t.Fatalf("expected pending for calls")
	}
	if InitialOutboundStatus(KindMessage) != StatusQueued {
		t.Fatalf("expected queued for messages")
	}
}
