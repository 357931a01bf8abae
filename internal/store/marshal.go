package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/verihire/outbox/internal/queue"
)

// Marshal serializes queue items into the slot format: a JSON array with
// the field names fixed by the queue item model, trailing newline, no HTML
// escaping.
//
// The encoding is deterministic for a given item slice, which is what makes
// save(load()) reproduce byte-identical slot content.
func Marshal(items []queue.Item) ([]byte, error) {
	if items == nil {
		items = []queue.Item{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("marshal queue slot: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses slot content back into queue items.
func Unmarshal(data []byte) ([]queue.Item, error) {
	var items []queue.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal queue slot: %w", err)
	}
	return items, nil
}
