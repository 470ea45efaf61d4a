package feed

import (
	"encoding/json"
	"fmt"

	"github.com/bitmex-tools/feedrelay/internal/model"
)

// Normalize decodes a raw upstream instrument message and extracts one
// tick per record carrying a last-trade price.
//
// The expected shape is {"data": [{timestamp, symbol, lastPrice, ...}, ...]};
// other top-level fields are ignored. A malformed top level (non-object
// message, missing or non-list data field) yields an empty tick list,
// not an error. Records without a numeric lastPrice are skipped. Only
// undecodable JSON is an error.
func Normalize(raw []byte, account string) ([]model.Tick, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode upstream message: %w", err)
	}

	obj, ok := top.(map[string]any)
	if !ok {
		return nil, nil
	}
	records, ok := obj["data"].([]any)
	if !ok {
		return nil, nil
	}

	ticks := make([]model.Tick, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		price, ok := m["lastPrice"].(float64)
		if !ok {
			continue
		}
		symbol, _ := m["symbol"].(string)
		ticks = append(ticks, model.Tick{
			Timestamp: m["timestamp"],
			Account:   account,
			Symbol:    symbol,
			Price:     price,
		})
	}
	return ticks, nil
}
