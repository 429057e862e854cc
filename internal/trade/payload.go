package trade

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// statusResponse is the envelope returned by tradestatus and by every trade
// action endpoint.
type statusResponse struct {
	Success     bool       `json:"success"`
	TradeStatus int        `json:"trade_status"`
	Version     int        `json:"version"`
	NewVersion  bool       `json:"newversion"`
	TradeID     flexUint64 `json:"tradeid"`
	Events      eventLog   `json:"events"`
}

// wireEvent is one raw entry of the trade event log. Numeric fields arrive as
// strings or numbers depending on the endpoint, hence the flex types.
type wireEvent struct {
	// Action is a pointer so an entry with no action field at all can be
	// told apart from action code 0 (item added).
	Action    *flexInt   `json:"action"`
	SteamID   flexUint64 `json:"steamid"`
	AppID     flexInt    `json:"appid"`
	ContextID flexInt    `json:"contextid"`
	AssetID   flexUint64 `json:"assetid"`
	Timestamp flexInt    `json:"timestamp"`
	Text      string     `json:"text"`
}

// logEntry pairs a log position with its raw entry. For the array-shaped log
// (first poll only) positions are unknown on the wire; keyed is false and the
// session assigns positions at processing time.
type logEntry struct {
	pos int64
	ev  wireEvent
}

// eventLog normalizes the two wire shapes of the event log, an object keyed
// by decimal log positions or a plain array, into one ordered sequence.
type eventLog struct {
	keyed   bool
	entries []logEntry
}

func (l *eventLog) UnmarshalJSON(b []byte) error {
	*l = eventLog{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '[' {
		var evs []wireEvent
		if err := json.Unmarshal(b, &evs); err != nil {
			return err
		}
		for _, ev := range evs {
			l.entries = append(l.entries, logEntry{ev: ev})
		}
		return nil
	}

	var keyedEvents map[string]wireEvent
	if err := json.Unmarshal(b, &keyedEvents); err != nil {
		return err
	}
	l.keyed = true
	for key, ev := range keyedEvents {
		pos, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			// Non-numeric keys carry no log position; skip them.
			continue
		}
		l.entries = append(l.entries, logEntry{pos: pos, ev: ev})
	}
	sort.Slice(l.entries, func(i, j int) bool {
		return l.entries[i].pos < l.entries[j].pos
	})
	return nil
}

// flexInt decodes a JSON number or a decimal string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = unquote(b)
	if b == nil {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexUint64 decodes a JSON number or a decimal string into a uint64.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(b []byte) error {
	b = unquote(b)
	if b == nil {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexUint64(n)
	return nil
}

func unquote(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if s == "" {
			return nil
		}
		return []byte(s)
	}
	return b
}
