package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

// Snapshot maps product id to a positive quantity. Removed products are
// deleted, never stored with zero.
type Snapshot map[string]int

// Cart is the authoritative per-user cart document.
type Cart struct {
	UserID    string    `bson:"_id" json:"user_id"`
	Items     Snapshot  `bson:"cartItems" json:"cart_items"`
	Seq       int64     `bson:"cartSeq" json:"seq"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// Clone returns an independent copy; nil becomes an empty snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, qty := range s {
		out[id] = qty
	}
	return out
}

// Count is the sum of all quantities.
func (s Snapshot) Count() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// Validate checks the snapshot invariants on an already typed value.
func (s Snapshot) Validate() error {
	for _, id := range s.sortedIDs() {
		if err := checkProductID(id); err != nil {
			return err
		}
		if s[id] <= 0 {
			return fmt.Errorf("%w: quantity for %q must be positive, got %d", ErrInvalidSnapshot, id, s[id])
		}
	}
	return nil
}

func (s Snapshot) sortedIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseSnapshot converts raw JSON values into a Snapshot. Every value must be
// a plain positive integer literal; strings, fractions, exponents, null and
// booleans are rejected. Nothing is returned unless every entry is valid.
func ParseSnapshot(raw map[string]json.RawMessage) (Snapshot, error) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(Snapshot, len(raw))
	for _, id := range ids {
		if err := checkProductID(id); err != nil {
			return nil, err
		}
		literal := string(bytes.TrimSpace(raw[id]))
		qty, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: quantity for %q must be an integer, got %s", ErrInvalidSnapshot, id, literal)
		}
		if qty <= 0 {
			return nil, fmt.Errorf("%w: quantity for %q must be positive, got %d", ErrInvalidSnapshot, id, qty)
		}
		out[id] = int(qty)
	}
	return out, nil
}

// checkProductID rejects ids that cannot be stored as document field names.
func checkProductID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty product id", ErrInvalidSnapshot)
	}
	if strings.HasPrefix(id, "$") || strings.Contains(id, ".") {
		return fmt.Errorf("%w: product id %q must not start with '$' or contain '.'", ErrInvalidSnapshot, id)
	}
	return nil
}
