package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
)

// barRecord is the on-disk JSON shape of a single input bar: plain
// strings for the decimal fields so the file can be hand-edited or
// produced by any language's JSON encoder without float precision
// loss.
type barRecord struct {
	Index     uint64 `json:"index"`
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
}

// loadBars reads a JSON array of barRecord from path and converts it
// to classify.Bar in file order.
func loadBars(path string) ([]classify.Bar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bars file: %w", err)
	}
	var records []barRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse bars file: %w", err)
	}

	bars := make([]classify.Bar, 0, len(records))
	for i, r := range records {
		open, err := decimal.NewFromString(r.Open)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid open %q: %w", i, r.Open, err)
		}
		high, err := decimal.NewFromString(r.High)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid high %q: %w", i, r.High, err)
		}
		low, err := decimal.NewFromString(r.Low)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid low %q: %w", i, r.Low, err)
		}
		closeP, err := decimal.NewFromString(r.Close)
		if err != nil {
			return nil, fmt.Errorf("bar %d: invalid close %q: %w", i, r.Close, err)
		}
		bars = append(bars, classify.Bar{
			Index: r.Index, Timestamp: r.Timestamp,
			Open: open, High: high, Low: low, Close: closeP,
		})
	}
	return bars, nil
}
