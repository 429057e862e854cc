package trade

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// InventoryContext is one inventory context of an app (e.g. a game's item
// backpack).
type InventoryContext struct {
	ID         int    `json:"-"`
	Name       string `json:"name"`
	AssetCount int    `json:"asset_count"`
}

// InventoryApp describes an application whose items can be offered in the
// trade, as reported by the bootstrap page.
type InventoryApp struct {
	AppID      int    `json:"appid"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Link       string `json:"link"`
	AssetCount int    `json:"asset_count"`
	Contexts   []InventoryContext
}

// ItemDescription is one line of an item's description text.
type ItemDescription struct {
	Color string `json:"color"`
	Value string `json:"value"`
}

// ItemTag is a category tag attached to an item description.
type ItemTag struct {
	Category     string `json:"category"`
	CategoryName string `json:"category_name"`
	Color        string `json:"color"`
	InternalName string `json:"internal_name"`
	Name         string `json:"name"`
}

// ItemDetails is the shared display metadata for all assets with the same
// classid/instanceid pair.
type ItemDetails struct {
	AppID           string            `json:"appid"`
	ClassID         string            `json:"classid"`
	Name            string            `json:"name"`
	NameColor       string            `json:"name_color"`
	BackgroundColor string            `json:"background_color"`
	IconURL         string            `json:"icon_url"`
	IconDragURL     string            `json:"icon_drag_url"`
	Type            string            `json:"type"`
	Tradable        flexInt           `json:"tradable"`
	Descriptions    []ItemDescription `json:"descriptions"`
	Tags            []ItemTag         `json:"tags"`
}

// InventoryItem is one concrete asset in an inventory.
type InventoryItem struct {
	ID         uint64
	ClassID    string
	InstanceID string
	Amount     int
	Details    *ItemDetails
}

// Inventory is a two-party trade's view of one side's items. It is built
// once from a payload and only ever replaced wholesale.
type Inventory struct {
	// Items maps an asset id to its item record.
	Items map[uint64]*InventoryItem

	// Details maps a "classid_instanceid" composite key to the metadata
	// shared by all assets of that class.
	Details map[string]*ItemDetails
}

// Lookup resolves an item reference from the event log against this
// inventory.
func (inv *Inventory) Lookup(item Item) (*InventoryItem, bool) {
	if inv == nil {
		return nil, false
	}
	it, ok := inv.Items[item.AssetID]
	return it, ok
}

// SortedItems returns the inventory items ordered by asset id, for stable
// listings.
func (inv *Inventory) SortedItems() []*InventoryItem {
	if inv == nil {
		return nil
	}
	items := make([]*InventoryItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type inventoryPayload struct {
	Success      bool                       `json:"success"`
	Error        string                     `json:"error"`
	Inventory    map[string]json.RawMessage `json:"rgInventory"`
	Descriptions map[string]json.RawMessage `json:"rgDescriptions"`
}

type wireInventoryItem struct {
	ID         flexUint64 `json:"id"`
	ClassID    string     `json:"classid"`
	InstanceID string     `json:"instanceid"`
	Amount     flexInt    `json:"amount"`
	Pos        flexInt    `json:"pos"`
}

// parseInventory parses a raw inventory payload. A malformed item or
// description only skips that entry; the skipped count is returned so
// callers can report it. A payload with success=false is an error as a
// whole.
func parseInventory(b []byte) (*Inventory, int, error) {
	var payload inventoryPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, 0, fmt.Errorf("inventory decode: %w", err)
	}
	if !payload.Success {
		if payload.Error != "" {
			return nil, 0, fmt.Errorf("inventory fetch failed: %s", payload.Error)
		}
		return nil, 0, fmt.Errorf("inventory fetch failed")
	}

	inv := &Inventory{
		Items:   make(map[uint64]*InventoryItem, len(payload.Inventory)),
		Details: make(map[string]*ItemDetails, len(payload.Descriptions)),
	}
	skipped := 0

	for key, raw := range payload.Descriptions {
		var details ItemDetails
		if err := json.Unmarshal(raw, &details); err != nil {
			skipped++
			continue
		}
		inv.Details[key] = &details
	}

	// The rgInventory map is keyed by UI slot index; only the asset id
	// inside each entry matters.
	for _, raw := range payload.Inventory {
		var wire wireInventoryItem
		if err := json.Unmarshal(raw, &wire); err != nil {
			skipped++
			continue
		}
		if wire.ID == 0 {
			skipped++
			continue
		}
		key := wire.ClassID + "_" + wire.InstanceID
		details, ok := inv.Details[key]
		if !ok {
			// An asset without its metadata record cannot be
			// interpreted; drop it rather than the whole batch.
			skipped++
			continue
		}
		inv.Items[uint64(wire.ID)] = &InventoryItem{
			ID:         uint64(wire.ID),
			ClassID:    wire.ClassID,
			InstanceID: wire.InstanceID,
			Amount:     int(wire.Amount),
			Details:    details,
		}
	}

	return inv, skipped, nil
}

type wireAppContext struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AssetCount int    `json:"asset_count"`
}

type wireInventoryApp struct {
	AppID      int                       `json:"appid"`
	Name       string                    `json:"name"`
	Icon       string                    `json:"icon"`
	Link       string                    `json:"link"`
	AssetCount int                       `json:"asset_count"`
	Contexts   map[string]wireAppContext `json:"rgContexts"`
}

// parseAppContexts parses the rgAppContextData page global into the list of
// tradable inventory apps.
func parseAppContexts(b []byte) ([]InventoryApp, error) {
	var wire map[string]wireInventoryApp
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("app context decode: %w", err)
	}

	apps := make([]InventoryApp, 0, len(wire))
	for _, w := range wire {
		app := InventoryApp{
			AppID:      w.AppID,
			Name:       w.Name,
			Icon:       w.Icon,
			Link:       w.Link,
			AssetCount: w.AssetCount,
		}
		for _, c := range w.Contexts {
			id, err := strconv.Atoi(c.ID)
			if err != nil {
				continue
			}
			app.Contexts = append(app.Contexts, InventoryContext{
				ID:         id,
				Name:       c.Name,
				AssetCount: c.AssetCount,
			})
		}
		sort.Slice(app.Contexts, func(i, j int) bool {
			return app.Contexts[i].ID < app.Contexts[j].ID
		})
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AppID < apps[j].AppID })
	return apps, nil
}
