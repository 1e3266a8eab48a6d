package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Pagination is the keyset flavour used by append-only feeds such as audit
// logs: newest first, resumed from the last row's (created_at, id).
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// Cursor is the position after which the next page starts.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrInvalidCursor = errors.New("invalid page token")

// EncodeCursor renders a cursor as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (Cursor, error) {
	var c Cursor
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, ErrInvalidCursor
	}
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" || c.CreatedAt.IsZero() {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// ClampSize applies the default and upper bound for a keyset page size.
func ClampSize(size, def, maxSize int) int {
	if size <= 0 {
		return def
	}
	return min(size, maxSize)
}

// Trim cuts a result fetched with limit+1 rows down to limit and reports
// whether more rows exist, with the token resuming after the last kept row.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo) {
	if len(rows) <= limit {
		return rows, PageInfo{}
	}
	rows = rows[:limit]
	return rows, PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(cursorOf(rows[len(rows)-1])),
	}
}
