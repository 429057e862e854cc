package main

import (
	"log"
	"time"

	"steam-gotrade/internal/jsonl"
	"steam-gotrade/internal/trade"
)

type tradeLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	Partner uint64 `json:"partner,omitempty"`
	Sender  uint64 `json:"sender,omitempty"`

	// Item reference, for item_added/item_removed.
	AppID     int    `json:"appid,omitempty"`
	ContextID int    `json:"contextid,omitempty"`
	AssetID   uint64 `json:"assetid,omitempty"`

	Message string `json:"message,omitempty"`

	// Terminal outcome.
	Status  string `json:"status,omitempty"`
	TradeID uint64 `json:"trade_id,omitempty"`

	UptimeMs int64 `json:"uptime_ms,omitempty"`
}

func logTradeEvent(w *jsonl.Writer, ev tradeLogEvent) {
	if w == nil {
		return
	}
	if ev.TsMs == 0 {
		ev.TsMs = time.Now().UnixMilli()
	}
	if err := w.Write(ev); err != nil {
		log.Printf("[warn] trade log write failed: %v", err)
	}
}

func sessionLogEvent(partnerID uint64, ev trade.Event) tradeLogEvent {
	rec := tradeLogEvent{
		Event:   ev.Type.String(),
		Partner: partnerID,
		Sender:  ev.Sender,
	}
	switch ev.Type {
	case trade.EventItemAdded, trade.EventItemRemoved:
		rec.AppID = ev.Item.AppID
		rec.ContextID = ev.Item.ContextID
		rec.AssetID = ev.Item.AssetID
	case trade.EventMessage:
		rec.Message = ev.Message
	case trade.EventFinished:
		rec.Status = ev.Status.String()
		rec.TradeID = ev.TradeID
	}
	return rec
}
