package trade

import (
	"testing"

	"steam-gotrade/internal/steamweb"
)

const (
	testOwnID     = 100
	testPartnerID = 200
)

// newLocalSession builds a session whose client points at an unroutable
// address; tests that exercise the network use newFakeTrade instead.
func newLocalSession(t *testing.T) *Session {
	t.Helper()
	client, err := steamweb.NewClient("http://127.0.0.1:1", steamweb.Credentials{
		SessionID: "sess123",
		Token:     "tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(client, testOwnID, testPartnerID)
}

func TestReconcileKeyedBatch(t *testing.T) {
	s := newLocalSession(t)
	s.nextLogPos = 5
	s.foreignInv = &Inventory{} // item events resolve directly

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":{
		"5":{"action":"0","steamid":"200","appid":440,"contextid":"2","assetid":"1234"},
		"6":{"action":"7","steamid":"200","text":"hi"}}}`))

	events := s.Drain()
	if len(events) != 2 {
		t.Fatalf("events mismatch: got %d want 2: %+v", len(events), events)
	}
	if events[0].Type != EventItemAdded || events[0].Item.AssetID != 1234 {
		t.Fatalf("first event mismatch: %+v", events[0])
	}
	if events[1].Type != EventMessage || events[1].Message != "hi" {
		t.Fatalf("second event mismatch: %+v", events[1])
	}
	if s.nextLogPos != 7 {
		t.Fatalf("nextLogPos mismatch: got %d want 7", s.nextLogPos)
	}
}

func TestReconcileIdempotentReplay(t *testing.T) {
	s := newLocalSession(t)
	s.nextLogPos = 5
	s.foreignInv = &Inventory{}

	body := []byte(`{"success":true,"trade_status":0,"events":{
		"5":{"action":"0","steamid":"200","appid":440,"contextid":"2","assetid":"1234"},
		"6":{"action":"7","steamid":"200","text":"hi"}}}`)

	s.processResponse(body)
	first := s.Drain()
	if len(first) != 2 {
		t.Fatalf("first pass mismatch: got %d want 2", len(first))
	}

	s.processResponse(body)
	if again := s.Drain(); len(again) != 0 {
		t.Fatalf("replay must not duplicate events: %+v", again)
	}
	if s.nextLogPos != 7 {
		t.Fatalf("replay must not move nextLogPos: got %d want 7", s.nextLogPos)
	}
}

func TestReconcileDiscardsStaleEntries(t *testing.T) {
	s := newLocalSession(t)
	s.nextLogPos = 10
	s.foreignInv = &Inventory{}

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":{
		"3":{"action":"7","steamid":"200","text":"old"}}}`))

	if events := s.Drain(); len(events) != 0 {
		t.Fatalf("stale entry must not produce events: %+v", events)
	}
	if s.pending.len() != 0 {
		t.Fatalf("stale entry must not touch the pending queue")
	}
	if s.nextLogPos != 10 {
		t.Fatalf("nextLogPos must never move backward: got %d", s.nextLogPos)
	}
}

func TestReconcileArrayShape(t *testing.T) {
	s := newLocalSession(t)
	s.foreignInv = &Inventory{}

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":[
		{"action":"7","steamid":"200","text":"a"},
		{"action":"7","steamid":"200","text":"b"}]}`))

	events := s.Drain()
	if len(events) != 2 {
		t.Fatalf("events mismatch: got %d want 2", len(events))
	}
	if events[0].Message != "a" || events[1].Message != "b" {
		t.Fatalf("order mismatch: %+v", events)
	}
	if s.nextLogPos != 2 {
		t.Fatalf("nextLogPos mismatch: got %d want 2", s.nextLogPos)
	}
}

func TestReconcileSuppressesOwnEvents(t *testing.T) {
	s := newLocalSession(t)
	s.foreignInv = &Inventory{}

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":{
		"0":{"action":"7","steamid":"100","text":"me"},
		"1":{"action":"7","steamid":"200","text":"them"}}}`))

	events := s.Drain()
	if len(events) != 1 || events[0].Message != "them" {
		t.Fatalf("self-originated entry must be suppressed: %+v", events)
	}
	if s.nextLogPos != 2 {
		t.Fatalf("suppressed entries still advance the cursor: got %d", s.nextLogPos)
	}
}

func TestReconcileUnknownActionDropped(t *testing.T) {
	s := newLocalSession(t)
	s.foreignInv = &Inventory{}

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":{
		"0":{"action":"9","steamid":"200"}}}`))

	if events := s.Drain(); len(events) != 0 {
		t.Fatalf("unknown action must be dropped: %+v", events)
	}
	if s.Status() != StatusInProgress {
		t.Fatalf("unknown action must never be fatal")
	}
}

func TestReconcileReadyUnreadyConfirmed(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":0,"events":{
		"0":{"action":"2","steamid":"200","timestamp":111},
		"1":{"action":"3","steamid":"200","timestamp":222},
		"2":{"action":"4","steamid":"200","timestamp":333}}}`))

	events := s.Drain()
	if len(events) != 3 {
		t.Fatalf("events mismatch: got %d want 3", len(events))
	}
	want := []EventType{EventReady, EventUnready, EventConfirmed}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event %d type mismatch: got %s want %s", i, ev.Type, want[i])
		}
	}
	if events[2].Timestamp != 333 {
		t.Fatalf("timestamp mismatch: %+v", events[2])
	}
}

func TestVersionTracking(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":0,"newversion":true,"version":4}`))
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	if version != 4 {
		t.Fatalf("version mismatch: got %d want 4", version)
	}

	s.processResponse([]byte(`{"success":true,"trade_status":0,"version":9}`))
	s.mu.Lock()
	version = s.version
	s.mu.Unlock()
	if version != 4 {
		t.Fatalf("version must only change with newversion: got %d", version)
	}
}

func TestMalformedResponseDropped(t *testing.T) {
	s := newLocalSession(t)
	s.nextLogPos = 3

	s.processResponse([]byte(`{"success":true,"trade_status":`))
	s.processResponse([]byte(`{"success":false,"trade_status":1}`))

	if events := s.Drain(); len(events) != 0 {
		t.Fatalf("dropped responses must not produce events: %+v", events)
	}
	if s.Status() != StatusInProgress {
		t.Fatalf("dropped responses must not change status")
	}
	if s.nextLogPos != 3 {
		t.Fatalf("dropped responses must not move the cursor: got %d", s.nextLogPos)
	}
}

func TestTerminalTransitionFinished(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":1,"tradeid":"123"}`))

	if s.Status() != StatusFinished {
		t.Fatalf("status mismatch: got %s", s.Status())
	}
	events := s.Drain()
	if len(events) != 1 || events[0].Type != EventFinished {
		t.Fatalf("expected single Finished event: %+v", events)
	}
	if events[0].Status != StatusFinished || events[0].TradeID != 123 {
		t.Fatalf("Finished payload mismatch: %+v", events[0])
	}

	select {
	case <-s.stop:
	default:
		t.Fatalf("terminal transition must stop the poll ticker")
	}
}

func TestTerminalTransitionIsFinal(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":3}`))
	if s.Status() != StatusCancelled {
		t.Fatalf("status mismatch: got %s", s.Status())
	}
	if events := s.Drain(); len(events) != 1 || events[0].Status != StatusCancelled {
		t.Fatalf("expected Cancelled Finished event: %+v", events)
	}

	// A late response cannot move the status or emit past the Finished
	// event.
	s.processResponse([]byte(`{"success":true,"trade_status":1,"tradeid":"5","events":{
		"0":{"action":"7","steamid":"200","text":"late"}}}`))
	if s.Status() != StatusCancelled {
		t.Fatalf("terminal status must not change: got %s", s.Status())
	}
	if events := s.Drain(); len(events) != 0 {
		t.Fatalf("no events after Finished: %+v", events)
	}
}

func TestUnknownStatusIgnored(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":2}`))
	if s.Status() != StatusInProgress {
		t.Fatalf("unknown status must be ignored: got %s", s.Status())
	}
	if events := s.Drain(); len(events) != 0 {
		t.Fatalf("unknown status must not emit events: %+v", events)
	}
}

func TestTimedOutStatus(t *testing.T) {
	s := newLocalSession(t)

	s.processResponse([]byte(`{"success":true,"trade_status":4}`))
	if s.Status() != StatusTimedOut {
		t.Fatalf("status mismatch: got %s", s.Status())
	}
}
