package pagination

import (
	"encoding/base64"
	"strings"
	"time"

	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

const (
	// DefaultLimit is the page size when the caller does not ask for one.
	DefaultLimit = 25
	// MaxLimit caps a single page regardless of what the caller asks for.
	MaxLimit = 100
)

// Params carries the listing inputs from the HTTP layer. The cursor is
// opaque to callers; only this package reads its contents.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points just past the last row of the previous page. Listings order
// newest first on (created_at, id), the id breaking ties between rows
// created in the same microsecond.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// NormalizeLimit clamps the requested page size into [1, MaxLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// FetchSize is the row count to query: one extra row reveals whether a next
// page exists without a second query.
func FetchSize(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Encode serializes a cursor for the client. The format is not a contract;
// clients must treat the string as opaque.
func Encode(c Cursor) string {
	payload := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// Decode parses a client-supplied cursor. An empty string means the first
// page. Anything malformed is a validation error so a truncated or forged
// cursor fails loudly instead of silently restarting the listing.
func Decode(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed cursor")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cursor timestamp")
	}
	if strings.TrimSpace(parts[1]) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cursor id missing")
	}
	return &Cursor{CreatedAt: createdAt, ID: parts[1]}, nil
}

// Page wraps one page of results with the cursor for the next one. An empty
// NextCursor means the listing is exhausted.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// BuildPage trims the over-fetched row and derives the next cursor from the
// last row kept. The at function extracts (created_at, id) from a row.
func BuildPage[T any](rows []T, limit int, at func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = Encode(at(page.Items[limit-1]))
	}
	return page
}
