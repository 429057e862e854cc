// Package state persists a small bot checkpoint between runs so a restarted
// bot knows which trades it already completed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type Checkpoint struct {
	OwnSteamID uint64 `json:"own_steam_id"`

	// CompletedTrades counts trades that reached the finished status.
	CompletedTrades int `json:"completed_trades"`

	// LastTradeID is the service-assigned id of the most recent finished
	// trade, with the partner it was made with.
	LastTradeID uint64 `json:"last_trade_id,omitempty"`
	LastPartner uint64 `json:"last_partner,omitempty"`
}

// RecordFinished folds one finished trade into the checkpoint.
func (c *Checkpoint) RecordFinished(partnerID, tradeID uint64) {
	c.CompletedTrades++
	c.LastTradeID = tradeID
	c.LastPartner = partnerID
}

// Load reads a checkpoint from path. A missing file is not an error; the
// second return reports whether a checkpoint existed.
func Load(path string) (Checkpoint, bool, error) {
	if path == "" {
		return Checkpoint{}, false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(b, &ckpt); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return ckpt, true, nil
}

// Save replaces the checkpoint file wholesale, creating the parent directory
// if needed.
func Save(path string, ckpt Checkpoint) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	return os.WriteFile(path, b, 0o644)
}
