package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"steam-gotrade/internal/trade"
)

type fakeSession struct {
	status  trade.Status
	inv     *trade.Inventory
	foreign *trade.Inventory
	queued  []trade.Event
	calls   []string
	chat    []string
}

func (f *fakeSession) Initialize(ctx context.Context) error { return nil }
func (f *fakeSession) Close()                               {}
func (f *fakeSession) Update()                              {}
func (f *fakeSession) Status() trade.Status                 { return f.status }
func (f *fakeSession) Inventory() *trade.Inventory          { return f.inv }
func (f *fakeSession) ForeignInventory() *trade.Inventory   { return f.foreign }

func (f *fakeSession) Drain() []trade.Event {
	evs := f.queued
	f.queued = nil
	return evs
}

func (f *fakeSession) LoadInventory(appID, contextID int) {
	f.calls = append(f.calls, fmt.Sprintf("load %d %d", appID, contextID))
}
func (f *fakeSession) AddItem(appID, contextID int, assetID uint64) {
	f.calls = append(f.calls, fmt.Sprintf("add %d", assetID))
}
func (f *fakeSession) RemoveItem(appID, contextID int, assetID uint64) {
	f.calls = append(f.calls, fmt.Sprintf("remove %d", assetID))
}
func (f *fakeSession) ToggleReady()  { f.calls = append(f.calls, "toggleready") }
func (f *fakeSession) Confirm()      { f.calls = append(f.calls, "confirm") }
func (f *fakeSession) Cancel()       { f.calls = append(f.calls, "cancel") }
func (f *fakeSession) SendChatMessage(msg string) {
	f.chat = append(f.chat, msg)
}

const adminID = 42

func newTestBot(f *fakeSession) *Bot {
	return New(f, Config{Admins: []uint64{adminID}})
}

func testInventory() *trade.Inventory {
	key := &trade.ItemDetails{Name: "Mann Co. Key", Tradable: 1}
	hat := &trade.ItemDetails{Name: "Ghastly Gibus", Tradable: 1}
	soul := &trade.ItemDetails{Name: "Bound Soul", Tradable: 0}
	return &trade.Inventory{
		Items: map[uint64]*trade.InventoryItem{
			1: {ID: 1, Details: key},
			2: {ID: 2, Details: hat},
			3: {ID: 3, Details: soul},
		},
		Details: map[string]*trade.ItemDetails{
			"10_0": key, "11_0": hat, "12_0": soul,
		},
	}
}

func chatEvent(sender uint64, text string) trade.Event {
	return trade.Event{Type: trade.EventMessage, Sender: sender, Message: text}
}

func TestInitializedLoadsFirstAppContext(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{{
		Type: trade.EventInitialized,
		InventoryApps: []trade.InventoryApp{{
			AppID: 440,
			Name:  "Team Fortress 2",
			Contexts: []trade.InventoryContext{
				{ID: 2, Name: "Backpack"},
			},
		}},
	}}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "load 440 2" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestAddCommandMatchesByName(t *testing.T) {
	f := &fakeSession{inv: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(adminID, "!add key")}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "add 1" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestAddCommandMatchesByAssetID(t *testing.T) {
	f := &fakeSession{inv: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(adminID, "!add 2")}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "add 2" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestAddCommandSkipsUntradable(t *testing.T) {
	f := &fakeSession{inv: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(adminID, "!add soul")}
	b.Tick()

	if len(f.calls) != 0 {
		t.Fatalf("untradable item must not be offered: %v", f.calls)
	}
	if len(f.chat) == 0 || !strings.Contains(f.chat[0], "No tradable items") {
		t.Fatalf("expected a chat refusal: %v", f.chat)
	}
}

func TestRemoveCommand(t *testing.T) {
	f := &fakeSession{inv: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(adminID, "!remove gibus")}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "remove 2" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestAdminOnlyCommandRejected(t *testing.T) {
	f := &fakeSession{inv: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(7, "!add key")}
	b.Tick()

	if len(f.calls) != 0 {
		t.Fatalf("non-admin must not trigger actions: %v", f.calls)
	}
	if len(f.chat) != 1 || !strings.Contains(f.chat[0], "not allowed") {
		t.Fatalf("expected a permission refusal: %v", f.chat)
	}
}

func TestReadyCommandForAnyone(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(7, "!ready")}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "toggleready" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestHelpCommandListsEveryCommand(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(7, "!help")}
	b.Tick()

	if len(f.chat) != len(commands) {
		t.Fatalf("help lines mismatch: got %d want %d: %v", len(f.chat), len(commands), f.chat)
	}
	for name := range commands {
		found := false
		for _, line := range f.chat {
			if strings.HasPrefix(line, commandPrefix+name+":") {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("command %q missing from help: %v", name, f.chat)
		}
	}
}

func TestUnknownCommandGetsReply(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(7, "!frobnicate")}
	b.Tick()

	if len(f.chat) != 1 || !strings.Contains(f.chat[0], "Unknown command") {
		t.Fatalf("expected unknown-command reply: %v", f.chat)
	}
}

func TestPlainChatIsNotACommand(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{chatEvent(7, "hello there")}
	b.Tick()

	if len(f.calls) != 0 || len(f.chat) != 0 {
		t.Fatalf("plain chat must be ignored: calls=%v chat=%v", f.calls, f.chat)
	}
}

func TestConfirmedIsMirrored(t *testing.T) {
	f := &fakeSession{}
	b := newTestBot(f)

	f.queued = []trade.Event{{Type: trade.EventConfirmed, Sender: 7}}
	b.Tick()

	if len(f.calls) != 1 || f.calls[0] != "confirm" {
		t.Fatalf("calls mismatch: %v", f.calls)
	}
}

func TestOfferTracking(t *testing.T) {
	foreign := testInventory()
	f := &fakeSession{foreign: foreign}
	b := newTestBot(f)

	f.queued = []trade.Event{
		{Type: trade.EventItemAdded, Sender: 7, Item: trade.Item{AppID: 440, AssetID: 1}},
		{Type: trade.EventItemAdded, Sender: 7, Item: trade.Item{AppID: 440, AssetID: 2}},
		{Type: trade.EventItemRemoved, Sender: 7, Item: trade.Item{AppID: 440, AssetID: 1}},
	}
	b.Tick()

	offered := b.Offered()
	if len(offered) != 1 || offered[0].ID != 2 {
		t.Fatalf("offer mismatch: %+v", offered)
	}

	f.queued = []trade.Event{chatEvent(adminID, "!items")}
	b.Tick()
	if len(f.chat) != 1 || !strings.Contains(f.chat[0], "Ghastly Gibus") {
		t.Fatalf("items listing mismatch: %v", f.chat)
	}
}

func TestItemFromOtherAppIgnored(t *testing.T) {
	f := &fakeSession{foreign: testInventory()}
	b := newTestBot(f)

	f.queued = []trade.Event{
		{Type: trade.EventItemAdded, Sender: 7, Item: trade.Item{AppID: 570, AssetID: 1}},
	}
	b.Tick()

	if len(b.Offered()) != 0 {
		t.Fatalf("items from other apps must be ignored")
	}

	f.queued = []trade.Event{
		{Type: trade.EventItemAdded, Sender: 7, Item: trade.Item{AppID: 440, AssetID: 2}},
		{Type: trade.EventItemRemoved, Sender: 7, Item: trade.Item{AppID: 570, AssetID: 2}},
	}
	b.Tick()

	if offered := b.Offered(); len(offered) != 1 || offered[0].ID != 2 {
		t.Fatalf("removal from another app must not touch the offer: %+v", offered)
	}
}
