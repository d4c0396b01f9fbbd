package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor points after the last row of the previous page. Rows are ordered by
// their snowflake ID, which is time ordered.
type Cursor struct {
	AfterID string `json:"after_id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Limit clamps the requested page size.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// AfterID decodes the page token; an empty token starts from the beginning.
func (p Pagination) AfterID() (int64, error) {
	if p.PageToken == "" {
		return 0, nil
	}
	cursor, err := DecodeCursor(p.PageToken)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	id, err := strconv.ParseInt(cursor.AfterID, 10, 64)
	if err != nil || id < 0 {
		return 0, ErrInvalidPageToken
	}
	return id, nil
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildCursorPage trims a limit+1 result set to limit and reports whether more
// rows follow.
func BuildCursorPage[T any](data []T, limit int, extractID func(T) int64) ([]T, PageInfo) {
	if len(data) <= limit {
		return data, PageInfo{HasMore: false}
	}
	data = data[:limit]
	token, _ := EncodeCursor(Cursor{AfterID: strconv.FormatInt(extractID(data[len(data)-1]), 10)})
	return data, PageInfo{HasMore: true, NextPageToken: token}
}
