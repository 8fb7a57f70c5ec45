// Package session keeps each user's catalogue browsing position.
//
// A cursor is a snapshot of the item ids listed when the user opened a
// category, so paging is stable even while other users buy items.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/router-for-me/PixStore/internal/models"
)

// ErrNoSession is returned when the user has no live cursor.
var ErrNoSession = errors.New("session: no active browsing session")

// Cursor is a user's position within a listing snapshot.
type Cursor struct {
	Kind     models.ItemKind `json:"kind"`
	Category string          `json:"category"`
	ItemIDs  []uint64        `json:"item_ids"`
	Index    int             `json:"index"`
}

// Current returns the id under the cursor.
func (c *Cursor) Current() (uint64, bool) {
	if c == nil || c.Index < 0 || c.Index >= len(c.ItemIDs) {
		return 0, false
	}
	return c.ItemIDs[c.Index], true
}

// Move shifts the cursor by delta, wrapping around the snapshot.
func (c *Cursor) Move(delta int) {
	n := len(c.ItemIDs)
	if n == 0 {
		c.Index = 0
		return
	}
	c.Index = ((c.Index+delta)%n + n) % n
}

// Remove drops id from the snapshot, keeping the cursor on the next item.
func (c *Cursor) Remove(id uint64) {
	for i, candidate := range c.ItemIDs {
		if candidate != id {
			continue
		}
		c.ItemIDs = append(c.ItemIDs[:i], c.ItemIDs[i+1:]...)
		if c.Index > i || c.Index >= len(c.ItemIDs) {
			c.Index--
		}
		if c.Index < 0 {
			c.Index = 0
		}
		return
	}
}

// Store persists cursors with a time to live.
type Store interface {
	Get(ctx context.Context, userID int64) (*Cursor, error)
	Put(ctx context.Context, userID int64, cursor *Cursor) error
	Delete(ctx context.Context, userID int64) error
}

// DefaultTTL is used by stores constructed with a non-positive ttl.
const DefaultTTL = 30 * time.Minute
