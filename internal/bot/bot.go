// Package bot drives a trade session: it drains the session's event queue on
// a cooperative tick, resolves item events against the loaded inventories and
// answers chat commands from the trade window.
package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"steam-gotrade/internal/trade"
)

// Session is the surface of trade.Session the bot consumes.
type Session interface {
	Initialize(ctx context.Context) error
	Close()
	Update()
	Drain() []trade.Event
	Status() trade.Status
	Inventory() *trade.Inventory
	ForeignInventory() *trade.Inventory
	LoadInventory(appID, contextID int)
	AddItem(appID, contextID int, assetID uint64)
	RemoveItem(appID, contextID int, assetID uint64)
	ToggleReady()
	Confirm()
	Cancel()
	SendChatMessage(message string)
}

type Config struct {
	// Admins may add/remove items and confirm or cancel the trade from
	// chat. Anyone in the trade may use help/ready/items.
	Admins []uint64

	// AppID and ContextID select the inventory context offered in this
	// trade.
	AppID     int
	ContextID int

	// UpdateInterval is the cadence of the event-drain tick.
	UpdateInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.AppID == 0 {
		c.AppID = 440
	}
	if c.ContextID == 0 {
		c.ContextID = 2
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = time.Second
	}
	return c
}

// Bot owns one trade session from bootstrap to its terminal status.
type Bot struct {
	cfg     Config
	session Session
	admins  map[uint64]struct{}

	// offered tracks the partner's current offer, by asset id.
	offered map[uint64]*trade.InventoryItem

	// EventHook, when set, observes every drained event. Used by the
	// binary for its audit log.
	EventHook func(trade.Event)
}

func New(session Session, cfg Config) *Bot {
	cfg = cfg.withDefaults()
	admins := make(map[uint64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &Bot{
		cfg:     cfg,
		session: session,
		admins:  admins,
		offered: make(map[uint64]*trade.InventoryItem),
	}
}

// Run bootstraps the session and processes events until the trade reaches a
// terminal status or ctx is cancelled.
func (b *Bot) Run(ctx context.Context) (trade.Status, error) {
	if err := b.session.Initialize(ctx); err != nil {
		return b.session.Status(), err
	}
	defer b.session.Close()

	ticker := time.NewTicker(b.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return b.session.Status(), ctx.Err()
		case <-ticker.C:
			b.Tick()
			if status := b.session.Status(); status != trade.StatusInProgress {
				return status, nil
			}
		}
	}
}

// Tick runs one drain cycle. Split out of Run for tests.
func (b *Bot) Tick() {
	b.session.Update()
	for _, ev := range b.session.Drain() {
		if b.EventHook != nil {
			b.EventHook(ev)
		}
		b.handleEvent(ev)
	}
}

func (b *Bot) handleEvent(ev trade.Event) {
	switch ev.Type {
	case trade.EventInitialized:
		b.handleInitialized(ev)
	case trade.EventItemAdded:
		b.handleItemAdded(ev)
	case trade.EventItemRemoved:
		b.handleItemRemoved(ev)
	case trade.EventReady:
		log.Printf("[info] partner is ready to trade")
	case trade.EventUnready:
		log.Printf("[info] partner is not ready to trade")
	case trade.EventConfirmed:
		// Mirror the partner's confirmation.
		log.Printf("[info] partner confirmed, confirming")
		b.session.Confirm()
	case trade.EventMessage:
		log.Printf("[info] %d says in trade: %s", ev.Sender, ev.Message)
		b.handleChatCommand(ev)
	case trade.EventInventoryLoaded:
		if inv := b.session.Inventory(); inv != nil {
			log.Printf("[info] inventory loaded: %d items", len(inv.Items))
		}
	case trade.EventForeignInventoryLoaded:
		if inv := b.session.ForeignInventory(); inv != nil {
			log.Printf("[info] foreign inventory loaded: %d items", len(inv.Items))
		}
	case trade.EventFinished:
		if ev.Status == trade.StatusFinished {
			log.Printf("[info] trade finished, id=%d", ev.TradeID)
		} else {
			log.Printf("[info] trade over: %s", ev.Status)
		}
	default:
		log.Printf("[warn] unhandled trade event: %s", ev.Type)
	}
}

// handleInitialized loads the own inventory for the first reported app
// context.
func (b *Bot) handleInitialized(ev trade.Event) {
	if b.session.Inventory() != nil {
		return
	}
	for _, app := range ev.InventoryApps {
		if len(app.Contexts) == 0 {
			continue
		}
		log.Printf("[info] loading inventory: %s", app.Name)
		b.session.LoadInventory(app.AppID, app.Contexts[0].ID)
		return
	}
}

func (b *Bot) handleItemAdded(ev trade.Event) {
	if ev.Item.AppID != b.cfg.AppID {
		log.Printf("[info] ignored item add from app %d", ev.Item.AppID)
		return
	}
	item, ok := b.session.ForeignInventory().Lookup(ev.Item)
	if !ok {
		log.Printf("[warn] unknown item added: %+v", ev.Item)
		return
	}
	b.offered[item.ID] = item
	log.Printf("[info] item added: %s", item.Details.Name)
}

func (b *Bot) handleItemRemoved(ev trade.Event) {
	if ev.Item.AppID != b.cfg.AppID {
		log.Printf("[info] ignored item remove from app %d", ev.Item.AppID)
		return
	}
	item, ok := b.session.ForeignInventory().Lookup(ev.Item)
	if !ok {
		log.Printf("[warn] unknown item removed: %+v", ev.Item)
		return
	}
	delete(b.offered, item.ID)
	log.Printf("[info] item removed: %s", item.Details.Name)
}

// Offered returns the partner's current offer, ordered by asset id.
func (b *Bot) Offered() []*trade.InventoryItem {
	items := make([]*trade.InventoryItem, 0, len(b.offered))
	for _, it := range b.offered {
		items = append(items, it)
	}
	sortItems(items)
	return items
}

func (b *Bot) isAdmin(id uint64) bool {
	_, ok := b.admins[id]
	return ok
}

func (b *Bot) say(format string, args ...any) {
	b.session.SendChatMessage(fmt.Sprintf(format, args...))
}
