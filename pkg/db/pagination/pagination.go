package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Pagination binds the cursor query parameters of a list endpoint.
type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=50" validate:"gte=1,lte=250"`
}

// Cursor marks the last row of a page. Ordering is (created_at, id)
// descending, so the pair is enough to resume exactly where a page ended.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Trim cuts a limit+1 result set down to the page size and reports whether
// more rows remain past it.
func Trim[T any](items []*T, limit int) ([]*T, bool) {
	if limit > 0 && len(items) > limit {
		return items[:limit], true
	}
	return items, false
}
