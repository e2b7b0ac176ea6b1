package scheduling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"interview-scheduler/internal/cursor"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Items      []TimeSlot
	NextCursor string
	HasMore    bool
	PageSize   int
}

// NormalizePageSize applies the default to non-positive sizes and caps the rest.
func NormalizePageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// Lister pages through AVAILABLE slots in (start, id) order. Each page is read
// on its own, so slots inserted before the cursor position are not revisited and
// slots after it are picked up by later pages.
type Lister struct {
	store Store
	settings
}

func NewLister(store Store, opts ...Option) *Lister {
	s := newSettings(opts)
	s.log = s.log.Named("lister")
	return &Lister{store: store, settings: s}
}

func (l *Lister) List(ctx context.Context, token string, pageSize int) (Page, error) {
	size := NormalizePageSize(pageSize)

	var after *cursor.Position
	if token != "" {
		pos, err := cursor.Decode(token)
		if err != nil {
			return Page{}, err
		}
		after = &pos
	}

	var rows []TimeSlot
	err := l.store.InTx(ctx, ReadCommitted, func(tx Tx) error {
		var err error
		rows, err = tx.ListAvailableSlots(ctx, after, size+1)
		return err
	})
	if err != nil {
		return Page{}, fmt.Errorf("list available slots: %w", err)
	}

	page := Page{PageSize: size, Items: make([]TimeSlot, 0, size)}
	if len(rows) > size {
		page.HasMore = true
		rows = rows[:size]
	}
	page.Items = append(page.Items, rows...)
	if page.HasMore {
		last := rows[len(rows)-1]
		page.NextCursor = cursor.Encode(last.Start, last.ID)
	}

	l.log.Debug("listed available slots", zap.Int("count", len(page.Items)), zap.Bool("has_more", page.HasMore))
	return page, nil
}
