package logstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned when a pagination token cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

type cursorToken struct {
	T  int64  `json:"t"`
	ID string `json:"id"`
}

// EncodeCursor turns a position into an opaque pagination token.
func EncodeCursor(p Position) string {
	b, _ := json.Marshal(cursorToken{T: p.Timestamp.UnixNano(), ID: p.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor is the inverse of EncodeCursor.
func DecodeCursor(s string) (Position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Position{}, ErrInvalidCursor
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil || tok.ID == "" {
		return Position{}, ErrInvalidCursor
	}
	return Position{Timestamp: time.Unix(0, tok.T).UTC(), ID: tok.ID}, nil
}
