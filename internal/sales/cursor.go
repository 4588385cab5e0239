package sales

// cursor.go implements the opaque keyset-pagination cursor.
//
// A cursor encodes the (order_date, order_id) tuple of the boundary row as
// a base64url-encoded JSON object. It is stateless, client-held, and must
// round-trip byte-for-byte: any token the server issued decodes back to the
// same tuple, and malformed tokens fail with ErrBadCursor.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type cursorPayload struct {
	OrderDate string `json:"od"`
	OrderID   int64  `json:"id"`
}

// EncodeCursor serializes a page boundary into an opaque URL-safe token.
func EncodeCursor(orderDate Date, orderID int64) string {
	payload, _ := json.Marshal(cursorPayload{
		OrderDate: orderDate.String(),
		OrderID:   orderID,
	})
	return base64.URLEncoding.EncodeToString(payload)
}

// DecodeCursor reverses EncodeCursor. All decode failures map to
// ErrBadCursor so callers surface a single request-error condition.
func DecodeCursor(token string) (Date, int64, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Date{}, 0, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Date{}, 0, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}

	orderDate, err := ParseDate(payload.OrderDate)
	if err != nil {
		return Date{}, 0, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}

	return orderDate, payload.OrderID, nil
}
