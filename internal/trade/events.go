package trade

import "sync"

// Status is the transaction status of a trade session. It is terminal once it
// leaves StatusInProgress.
type Status int

const (
	StatusInProgress Status = iota
	StatusCancelled
	StatusTimedOut
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed_out"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EventType tags the variants of Event.
type EventType int

const (
	EventInitialized EventType = iota
	EventItemAdded
	EventItemRemoved
	EventReady
	EventUnready
	EventConfirmed
	EventMessage
	EventInventoryLoaded
	EventForeignInventoryLoaded
	EventFinished
)

func (t EventType) String() string {
	switch t {
	case EventInitialized:
		return "initialized"
	case EventItemAdded:
		return "item_added"
	case EventItemRemoved:
		return "item_removed"
	case EventReady:
		return "ready"
	case EventUnready:
		return "unready"
	case EventConfirmed:
		return "confirmed"
	case EventMessage:
		return "message"
	case EventInventoryLoaded:
		return "inventory_loaded"
	case EventForeignInventoryLoaded:
		return "foreign_inventory_loaded"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Item references an item by its service-assigned ids. Resolving it to a
// display record requires the relevant inventory snapshot.
type Item struct {
	AppID     int
	ContextID int
	AssetID   uint64
}

// Event is a single typed occurrence observed in a trade session. Only the
// fields relevant to its Type are set.
type Event struct {
	Type EventType

	// Sender is the Steam id of the party that caused the event, when the
	// event log carries one.
	Sender uint64

	// Item is set for EventItemAdded and EventItemRemoved.
	Item Item

	// Timestamp is set for ready/unready/confirmed events.
	Timestamp uint32

	// Message is set for EventMessage.
	Message string

	// InventoryApps is set for EventInitialized.
	InventoryApps []InventoryApp

	// Status and TradeID are set for EventFinished. TradeID is only
	// meaningful when Status is StatusFinished.
	Status  Status
	TradeID uint64
}

// eventQueue is an ordered FIFO of events safe for concurrent producers and
// consumers. The ready and pending queues each have their own queue so the
// consumer never contends with the session's response-processing lock.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// drain removes and returns all queued events in order.
func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
