// Package trade implements a trade session against the Steam community web
// trading endpoints: action submission, status polling, event log
// reconciliation and the two-party inventory snapshots needed to interpret
// item events.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"steam-gotrade/internal/steamweb"
)

const (
	// PollInterval is the fixed cadence of the automatic tradestatus poll.
	PollInterval = 3 * time.Second

	// maxPollFailures bounds consecutive transport failures before the
	// automatic poll is suspended. The session then only progresses
	// through action-triggered responses.
	maxPollFailures = 5
)

// ErrSessionMismatch is returned by Initialize when the trade page reports a
// web session id different from the client's. The session is unusable.
var ErrSessionMismatch = errors.New("trade: web session id mismatch")

// Session is one active trade with a single partner. Response processing
// runs on goroutines spawned by the poll ticker and by action calls; the
// owner consumes results by draining the event queue on its own schedule.
type Session struct {
	client    *steamweb.Client
	ownID     uint64
	partnerID uint64
	tradeURL  string

	ready   eventQueue
	pending eventQueue

	// mu serializes response processing. Only one response may mutate
	// session state at a time; the event queues have their own locks.
	mu               sync.Mutex
	status           Status
	version          int
	nextLogPos       int64
	itemSlot         int
	inventory        *Inventory
	foreignInv       *Inventory
	foreignRequested bool
	inventoryApps    []InventoryApp
	inventoryLoadURL string
	pollFailures     int
	initialized      bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a session for a trade with partnerID. The client's cookie set
// is owned by this session for its lifetime.
func New(client *steamweb.Client, ownID, partnerID uint64) *Session {
	s := &Session{
		client:    client,
		ownID:     ownID,
		partnerID: partnerID,
		tradeURL:  fmt.Sprintf("%s/trade/%d", client.BaseURL(), partnerID),
		version:   1,
		stop:      make(chan struct{}),
	}
	client.SetReferer(s.tradeURL)
	return s
}

// OwnID returns the local account's Steam id.
func (s *Session) OwnID() uint64 { return s.ownID }

// PartnerID returns the counterpart's Steam id.
func (s *Session) PartnerID() uint64 { return s.partnerID }

// Status returns the current transaction status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Inventory returns the own inventory snapshot, or nil if not loaded yet.
func (s *Session) Inventory() *Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory
}

// ForeignInventory returns the counterpart's inventory snapshot, or nil if
// not loaded yet.
func (s *Session) ForeignInventory() *Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreignInv
}

// InventoryApps returns the tradable apps parsed during bootstrap.
func (s *Session) InventoryApps() []InventoryApp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventoryApps
}

var pageGlobalRe = regexp.MustCompile(`(?m)(?:var\s+)?g_(\w+)\s*=\s*(.*);`)

// Initialize performs the one-time bootstrap: it fetches the trade page,
// extracts the embedded session variables, validates the web session id and
// starts the poll ticker. A session id mismatch is fatal; missing page
// variables are not, polling starts regardless.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return fmt.Errorf("trade: session already initialized")
	}
	s.initialized = true
	s.mu.Unlock()

	body, err := s.client.Do(ctx, http.MethodGet, s.tradeURL, nil)
	if err != nil {
		return fmt.Errorf("trade: bootstrap fetch: %w", err)
	}

	globals := make(map[string]string)
	for _, m := range pageGlobalRe.FindAllStringSubmatch(string(body), -1) {
		globals[m[1]] = m[2]
	}

	if raw, ok := globals["sessionID"]; ok {
		if trimQuotes(raw) != s.client.SessionID() {
			return ErrSessionMismatch
		}
	}

	s.mu.Lock()
	if raw, ok := globals["strInventoryLoadURL"]; ok {
		s.inventoryLoadURL = trimQuotes(raw)
	}
	if raw, ok := globals["rgAppContextData"]; ok {
		apps, err := parseAppContexts([]byte(raw))
		if err != nil {
			log.Printf("[warn] trade %d: app context data: %v", s.partnerID, err)
		} else {
			s.inventoryApps = apps
			s.ready.push(Event{Type: EventInitialized, InventoryApps: apps})
		}
	}
	s.mu.Unlock()

	go s.pollLoop()
	return nil
}

// Close stops the poll ticker. It is safe to call multiple times and after a
// terminal transition.
func (s *Session) Close() {
	s.stopPolling()
}

// Update promotes buffered item events to the ready queue once the foreign
// inventory snapshot is available. It never performs I/O and never blocks on
// the network; the owner calls it from its own loop.
func (s *Session) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushPendingLocked()
}

func (s *Session) flushPendingLocked() {
	if s.status != StatusInProgress || s.foreignInv == nil {
		return
	}
	for {
		ev, ok := s.pending.pop()
		if !ok {
			return
		}
		s.ready.push(ev)
	}
}

// Next pops the oldest ready event, if any.
func (s *Session) Next() (Event, bool) {
	return s.ready.pop()
}

// Drain removes and returns all ready events in order.
func (s *Session) Drain() []Event {
	return s.ready.drain()
}

func (s *Session) stopPolling() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) pollLoop() {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	s.poll()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Session) poll() {
	s.mu.Lock()
	if s.status != StatusInProgress || s.pollFailures >= maxPollFailures {
		s.mu.Unlock()
		return
	}
	fields := s.commonFieldsLocked()
	s.mu.Unlock()

	body, err := s.client.Do(context.Background(), http.MethodPost, s.actionURL("tradestatus"), fields)
	if err != nil {
		metricTransportFailures.Inc()
		s.mu.Lock()
		s.pollFailures++
		failures := s.pollFailures
		s.mu.Unlock()
		log.Printf("[warn] trade %d: status poll: %v", s.partnerID, err)
		if failures >= maxPollFailures {
			log.Printf("[warn] trade %d: suspending automatic polling after %d consecutive failures", s.partnerID, failures)
		}
		return
	}

	s.mu.Lock()
	s.pollFailures = 0
	s.mu.Unlock()

	s.processResponse(body)
}

// AddItem asynchronously offers one of the own items in the trade window.
func (s *Session) AddItem(appID, contextID int, assetID uint64) {
	s.mu.Lock()
	slot := s.itemSlot
	s.itemSlot++
	s.mu.Unlock()

	s.submitAction("additem", url.Values{
		"appid":     {strconv.Itoa(appID)},
		"contextid": {strconv.Itoa(contextID)},
		"itemid":    {strconv.FormatUint(assetID, 10)},
		"slot":      {strconv.Itoa(slot)},
	})
}

// RemoveItem asynchronously withdraws one of the own items from the trade
// window.
func (s *Session) RemoveItem(appID, contextID int, assetID uint64) {
	s.submitAction("removeitem", url.Values{
		"appid":     {strconv.Itoa(appID)},
		"contextid": {strconv.Itoa(contextID)},
		"itemid":    {strconv.FormatUint(assetID, 10)},
	})
}

// ToggleReady asynchronously flips the local ready flag.
func (s *Session) ToggleReady() {
	s.submitAction("toggleready", url.Values{
		"ready": {"true"},
	})
}

// Confirm asynchronously confirms the trade.
func (s *Session) Confirm() {
	s.submitAction("confirm", nil)
}

// Cancel asynchronously cancels the trade.
func (s *Session) Cancel() {
	s.submitAction("cancel", nil)
}

// SendChatMessage asynchronously sends a chat line to the partner.
func (s *Session) SendChatMessage(message string) {
	s.submitAction("chat", url.Values{
		"message": {message},
	})
}

// submitAction fires an action request and funnels its response through the
// same processing path as polling. The caller is never blocked; completion
// order between in-flight actions is not guaranteed.
func (s *Session) submitAction(action string, extra url.Values) {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		log.Printf("[warn] trade %d: %s ignored, trade is %s", s.partnerID, action, s.status)
		return
	}
	fields := s.commonFieldsLocked()
	s.mu.Unlock()

	for k, vs := range extra {
		for _, v := range vs {
			fields.Add(k, v)
		}
	}

	go func() {
		body, err := s.client.Do(context.Background(), http.MethodPost, s.actionURL(action), fields)
		if err != nil {
			metricTransportFailures.Inc()
			log.Printf("[warn] trade %d: %s: %v", s.partnerID, action, err)
			return
		}
		s.processResponse(body)
	}()
}

// commonFieldsLocked builds the fields every action and poll carries.
func (s *Session) commonFieldsLocked() url.Values {
	return url.Values{
		"sessionid": {s.client.SessionID()},
		"logpos":    {strconv.FormatInt(s.nextLogPos, 10)},
		"version":   {strconv.Itoa(s.version)},
	}
}

func (s *Session) actionURL(action string) string {
	return s.tradeURL + "/" + action + "/"
}

// LoadInventory asynchronously fetches the own inventory for one app
// context. The load URL comes from the bootstrap page.
func (s *Session) LoadInventory(appID, contextID int) {
	s.mu.Lock()
	loadURL := s.inventoryLoadURL
	s.mu.Unlock()

	if loadURL == "" {
		log.Printf("[warn] trade %d: no inventory load url from bootstrap", s.partnerID)
		return
	}
	target := fmt.Sprintf("%s%d/%d/?trading=1", loadURL, appID, contextID)

	go func() {
		body, err := s.client.Do(context.Background(), http.MethodGet, target, nil)
		if err != nil {
			metricTransportFailures.Inc()
			log.Printf("[warn] trade %d: inventory fetch: %v", s.partnerID, err)
			return
		}
		inv, skipped, err := parseInventory(body)
		if err != nil {
			metricMalformedPayloads.Inc()
			log.Printf("[warn] trade %d: inventory: %v", s.partnerID, err)
			return
		}
		if skipped > 0 {
			metricMalformedItems.Add(float64(skipped))
			log.Printf("[warn] trade %d: inventory: skipped %d malformed items", s.partnerID, skipped)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != StatusInProgress {
			// Snapshot arrived after the terminal transition; nothing may
			// follow the Finished event.
			return
		}
		s.inventory = inv
		s.ready.push(Event{Type: EventInventoryLoaded})
	}()
}

// requestForeignInventoryLocked triggers the one-time load of the partner's
// inventory. Item events arriving before it completes are buffered.
func (s *Session) requestForeignInventoryLocked(appID, contextID int) {
	if s.foreignRequested {
		return
	}
	s.foreignRequested = true

	fields := url.Values{
		"sessionid": {s.client.SessionID()},
		"steamid":   {strconv.FormatUint(s.partnerID, 10)},
		"appid":     {strconv.Itoa(appID)},
		"contextid": {strconv.Itoa(contextID)},
	}

	go func() {
		// The endpoint expects a GET carrying a urlencoded body.
		body, err := s.client.Do(context.Background(), http.MethodGet, s.actionURL("foreigninventory"), fields)
		if err != nil {
			metricTransportFailures.Inc()
			log.Printf("[warn] trade %d: foreign inventory fetch: %v", s.partnerID, err)
			s.clearForeignRequested()
			return
		}
		inv, skipped, err := parseInventory(body)
		if err != nil {
			metricMalformedPayloads.Inc()
			log.Printf("[warn] trade %d: foreign inventory: %v", s.partnerID, err)
			s.clearForeignRequested()
			return
		}
		if skipped > 0 {
			metricMalformedItems.Add(float64(skipped))
			log.Printf("[warn] trade %d: foreign inventory: skipped %d malformed items", s.partnerID, skipped)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != StatusInProgress {
			// Snapshot arrived after the terminal transition; nothing may
			// follow the Finished event.
			return
		}
		s.foreignInv = inv
		s.ready.push(Event{Type: EventForeignInventoryLoaded})
		// Flush buffered item events right away so later arrivals can
		// never overtake them on the ready queue.
		s.flushPendingLocked()
	}()
}

// clearForeignRequested lets a later item event retry the load after a
// failed attempt.
func (s *Session) clearForeignRequested() {
	s.mu.Lock()
	s.foreignRequested = false
	s.mu.Unlock()
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `'"`)
}
