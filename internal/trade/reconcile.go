package trade

import (
	"encoding/json"
	"log"
)

// Action codes of the raw event log.
const (
	actionItemAdded   = 0
	actionItemRemoved = 1
	actionReady       = 2
	actionUnready     = 3
	actionConfirmed   = 4
	actionChatMessage = 7
)

// processResponse parses a poll or action response and applies it to the
// session. It is the single critical section: one response at a time may
// mutate version, nextLogPos and status. Responses arriving after a terminal
// transition are dropped so the Finished event stays last on the ready
// queue.
func (s *Session) processResponse(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metricMalformedPayloads.Inc()
		log.Printf("[warn] trade %d: malformed response: %v", s.partnerID, err)
		return
	}
	if !resp.Success {
		log.Printf("[warn] trade %d: response without success", s.partnerID)
		return
	}

	if resp.NewVersion {
		s.version = resp.Version
	}

	// Events first: a final response may carry both the closing events and
	// the terminal status, and Finished must be the last event delivered.
	s.reconcileEventsLocked(resp.Events)
	s.applyStatusLocked(&resp)
}

// applyStatusLocked maps the wire trade_status onto the session status. The
// first terminal transition wins, stops the poll ticker and emits the final
// Finished event.
func (s *Session) applyStatusLocked(resp *statusResponse) {
	switch resp.TradeStatus {
	case 0:
		// Trade is ongoing.
	case 1:
		s.finishLocked(StatusFinished, uint64(resp.TradeID))
	case 3:
		s.finishLocked(StatusCancelled, 0)
	case 4:
		s.finishLocked(StatusTimedOut, 0)
	default:
		metricUnknownStatuses.Inc()
		log.Printf("[warn] trade %d: unknown trade status %d", s.partnerID, resp.TradeStatus)
	}
}

func (s *Session) finishLocked(status Status, tradeID uint64) {
	if s.status != StatusInProgress {
		return
	}
	s.status = status
	s.stopPolling()
	s.ready.push(Event{Type: EventFinished, Status: status, TradeID: tradeID})
}

// reconcileEventsLocked folds a batch of raw log entries into the session.
//
// A keyed batch carries explicit log positions: entries below the current
// cursor are duplicates and are discarded, and afterwards the cursor moves
// to max(position)+1 so replaying the same batch is a no-op. The plain list
// shape only appears on the very first poll; its entries take consecutive
// positions starting at the current cursor.
func (s *Session) reconcileEventsLocked(events eventLog) {
	if len(events.entries) == 0 {
		return
	}

	if events.keyed {
		floor := s.nextLogPos
		last := s.nextLogPos - 1
		for _, e := range events.entries {
			if e.pos > last {
				last = e.pos
			}
			if e.pos < floor {
				metricStaleEntries.Inc()
				continue
			}
			s.processEntryLocked(e.ev)
		}
		s.nextLogPos = last + 1
		return
	}

	for _, e := range events.entries {
		s.nextLogPos++
		s.processEntryLocked(e.ev)
	}
}

// processEntryLocked classifies one raw log entry into a typed event and
// routes it to the ready queue, or to the pending queue when it references
// the not-yet-loaded foreign inventory.
func (s *Session) processEntryLocked(ev wireEvent) {
	if ev.Action == nil {
		return
	}

	sender := uint64(ev.SteamID)
	if sender == s.ownID {
		// Self-originated entries are echoes of our own actions.
		return
	}

	event := Event{Sender: sender}
	pendForeign := false

	switch int(*ev.Action) {
	case actionItemAdded, actionItemRemoved:
		event.Type = EventItemAdded
		if int(*ev.Action) == actionItemRemoved {
			event.Type = EventItemRemoved
		}
		event.Item = Item{
			AppID:     int(ev.AppID),
			ContextID: int(ev.ContextID),
			AssetID:   uint64(ev.AssetID),
		}
		if s.foreignInv == nil {
			s.requestForeignInventoryLocked(event.Item.AppID, event.Item.ContextID)
			pendForeign = true
		}
	case actionReady, actionUnready:
		event.Type = EventReady
		if int(*ev.Action) == actionUnready {
			event.Type = EventUnready
		}
		event.Timestamp = uint32(ev.Timestamp)
	case actionConfirmed:
		event.Type = EventConfirmed
		event.Timestamp = uint32(ev.Timestamp)
	case actionChatMessage:
		event.Type = EventMessage
		event.Message = ev.Text
	default:
		metricUnknownActions.Inc()
		log.Printf("[warn] trade %d: unknown event action %d", s.partnerID, int(*ev.Action))
		return
	}

	if pendForeign {
		s.pending.push(event)
		return
	}
	// Item events must not overtake ones still buffered for the foreign
	// inventory.
	if (event.Type == EventItemAdded || event.Type == EventItemRemoved) && s.pending.len() > 0 {
		s.pending.push(event)
		return
	}
	s.ready.push(event)
}
