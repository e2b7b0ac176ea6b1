// Package cursor encodes the (start, id) position used to resume slot listings.
//
// Tokens are opaque to callers. They are URL-safe base64 without padding, so
// they can be passed directly as a query parameter.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const separator = "::"

var ErrInvalidCursor = errors.New("invalid cursor")

// Position is the last-seen element of a listing in (start, id) order.
// Decode always yields Start in UTC; compare it with time.Time.Equal, not ==.
type Position struct {
	Start time.Time
	ID    int64
}

// After reports whether (start, id) sorts strictly after p.
func (p Position) After(start time.Time, id int64) bool {
	return start.After(p.Start) || (start.Equal(p.Start) && id > p.ID)
}

func Encode(start time.Time, id int64) string {
	raw := start.UTC().Format(time.RFC3339Nano) + separator + strconv.FormatInt(id, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func Decode(token string) (Position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Position{}, fmt.Errorf("%w: not base64", ErrInvalidCursor)
	}

	parts := strings.Split(string(raw), separator)
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("%w: expected 2 components, got %d", ErrInvalidCursor, len(parts))
	}

	start, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Position{}, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("%w: bad id", ErrInvalidCursor)
	}

	return Position{Start: start, ID: id}, nil
}
