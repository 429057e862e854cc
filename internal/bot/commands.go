package bot

import (
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"steam-gotrade/internal/trade"
)

// commandPrefix marks a chat line as a command for the bot.
const commandPrefix = "!"

type command struct {
	admin bool
	help  string
	run   func(b *Bot, arg string, sender uint64)
}

// commands is assigned in init: the help closure walks the map itself, so a
// composite-literal initializer would be an initialization cycle.
var commands map[string]command

func init() {
	commands = map[string]command{
		"help": {
			help: "shows this help text",
			run: func(b *Bot, arg string, sender uint64) {
				b.sendHelp()
			},
		},
		"ready": {
			help: "readies up the trade",
			run: func(b *Bot, arg string, sender uint64) {
				b.session.ToggleReady()
			},
		},
		"add": {
			admin: true,
			help:  "adds items matching [id | name pattern] to the trade",
			run: func(b *Bot, arg string, sender uint64) {
				b.addOrRemove(arg, true)
			},
		},
		"remove": {
			admin: true,
			help:  "removes items matching [id | name pattern] from the trade",
			run: func(b *Bot, arg string, sender uint64) {
				b.addOrRemove(arg, false)
			},
		},
		"confirm": {
			admin: true,
			help:  "confirms the trade",
			run: func(b *Bot, arg string, sender uint64) {
				b.session.Confirm()
			},
		},
		"items": {
			admin: true,
			help:  "lists the items currently offered by the partner",
			run: func(b *Bot, arg string, sender uint64) {
				b.listOffered()
			},
		},
		"cancel": {
			admin: true,
			help:  "cancels the current trade",
			run: func(b *Bot, arg string, sender uint64) {
				b.session.Cancel()
			},
		},
	}
}

func (b *Bot) handleChatCommand(ev trade.Event) {
	text := strings.TrimSpace(ev.Message)
	if !strings.HasPrefix(text, commandPrefix) {
		return
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, commandPrefix), " ")
	name = strings.ToLower(name)

	cmd, ok := commands[name]
	if !ok {
		b.say("Unknown command %q, try %shelp.", name, commandPrefix)
		return
	}
	if cmd.admin && !b.isAdmin(ev.Sender) {
		b.say("You are not allowed to use %q.", name)
		return
	}
	cmd.run(b, strings.TrimSpace(arg), ev.Sender)
}

func (b *Bot) sendHelp() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.say("%s%s: %s", commandPrefix, name, commands[name].help)
	}
}

func (b *Bot) addOrRemove(arg string, add bool) {
	if arg == "" {
		b.say("Invalid arguments.")
		return
	}
	matches := b.matchOwnItems(arg)
	if len(matches) == 0 {
		b.say("No tradable items match %q.", arg)
		return
	}
	for _, item := range matches {
		if add {
			log.Printf("[info] putting in trade: %s", item.Details.Name)
			b.session.AddItem(b.cfg.AppID, b.cfg.ContextID, item.ID)
		} else {
			log.Printf("[info] removing from trade: %s", item.Details.Name)
			b.session.RemoveItem(b.cfg.AppID, b.cfg.ContextID, item.ID)
		}
	}
}

// matchOwnItems returns the tradable own items whose name or asset id
// matches the pattern, as a case-insensitive substring regexp.
func (b *Bot) matchOwnItems(pattern string) []*trade.InventoryItem {
	inv := b.session.Inventory()
	if inv == nil {
		return nil
	}
	re, err := regexp.Compile("(?i).*" + regexp.QuoteMeta(pattern) + ".*")
	if err != nil {
		return nil
	}

	var matches []*trade.InventoryItem
	for _, item := range inv.SortedItems() {
		if item.Details == nil || int(item.Details.Tradable) != 1 {
			continue
		}
		if re.MatchString(item.Details.Name) || re.MatchString(strconv.FormatUint(item.ID, 10)) {
			matches = append(matches, item)
		}
	}
	return matches
}

func (b *Bot) listOffered() {
	items := b.Offered()
	if len(items) == 0 {
		b.say("Nothing offered yet.")
		return
	}
	for _, item := range items {
		b.say("%d | %s", item.ID, item.Details.Name)
	}
}

func sortItems(items []*trade.InventoryItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
