// Package repeat manages the ordered, itemId-keyed lists behind repeating
// page groups. Items are created on first successful submit, edited in
// place by id (order preserved), and removed by id. Cardinality bounds
// come from the page's repeat configuration; exceeding the maximum is a
// list-level error, not an item error.
package repeat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/matthewbaird/formflow/internal/types"
)

// ItemIDKey is the reserved key identifying an item within its list.
const ItemIDKey = "itemId"

// ErrItemNotFound is returned when an itemId is not present in the list.
var ErrItemNotFound = errors.New("repeat: item not found")

// MaxItemsError reports an add that would exceed the list's maximum.
type MaxItemsError struct {
	List string
	Max  int
}

func (e *MaxItemsError) Error() string {
	return fmt.Sprintf("repeat: list %q already has the maximum of %d items", e.List, e.Max)
}

// Items reads the named list out of a state slice. Entries that are not
// objects are dropped.
func Items(section map[string]any, name string) []map[string]any {
	raw, _ := section[name].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if item, ok := v.(map[string]any); ok {
			out = append(out, item)
		}
	}
	return out
}

// ToState converts a typed item list back to the stored shape.
func ToState(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// Add appends a new item. An itemId is generated only when the item does
// not supply one. Adding past cfg.Max fails with a MaxItemsError.
func Add(items []map[string]any, item map[string]any, cfg types.RepeatConfig) ([]map[string]any, error) {
	if cfg.Max > 0 && len(items) >= cfg.Max {
		return items, &MaxItemsError{List: cfg.Name, Max: cfg.Max}
	}
	if _, ok := item[ItemIDKey].(string); !ok {
		item[ItemIDKey] = uuid.NewString()
	}
	out := make([]map[string]any, 0, len(items)+1)
	out = append(out, items...)
	out = append(out, item)
	return out, nil
}

// Update replaces the item with the given id at its existing index. The
// supplied item keeps that id regardless of what it carries.
func Update(items []map[string]any, itemID string, item map[string]any) ([]map[string]any, error) {
	for i, existing := range items {
		if existing[ItemIDKey] == itemID {
			item[ItemIDKey] = itemID
			out := make([]map[string]any, len(items))
			copy(out, items)
			out[i] = item
			return out, nil
		}
	}
	return items, ErrItemNotFound
}

// Remove filters out the item with the given id.
func Remove(items []map[string]any, itemID string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	found := false
	for _, existing := range items {
		if existing[ItemIDKey] == itemID {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		return items, ErrItemNotFound
	}
	return out, nil
}

// Find returns the item with the given id.
func Find(items []map[string]any, itemID string) (map[string]any, bool) {
	for _, item := range items {
		if item[ItemIDKey] == itemID {
			return item, true
		}
	}
	return nil, false
}
