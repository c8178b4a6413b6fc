package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the canonical, opaque pagination token (pre-encoding) with short field names to
// minimize payload size. It is serialized to minified JSON and encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - did: dataset handle ID
//   - qh:  hash of the query the rows belong to (see QueryHash)
//   - off: row offset into the ordered result
//   - ps:  page size in rows
//   - iat: issued-at timestamp (unix seconds)
//   - k/m/o/a: original keys, metrics, order column and direction, so a cursor
//     alone can resume the query
type Cursor struct {
	V   int      `json:"v"`
	Did string   `json:"did"`
	Qh  string   `json:"qh"`
	Off int      `json:"off"`
	Ps  int      `json:"ps"`
	Iat int64    `json:"iat"`
	K   []string `json:"k,omitempty"`
	M   []string `json:"m,omitempty"`
	O   string   `json:"o,omitempty"`
	A   bool     `json:"a,omitempty"`
}

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Did) == "" {
		return errors.New("cursor: did (dataset id) required")
	}
	if strings.TrimSpace(c.Qh) == "" {
		return errors.New("cursor: qh (query hash) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	return nil
}

// QueryHash fingerprints an ordered list of query parts. Part boundaries are
// significant: ("ab","c") and ("a","bc") hash differently.
func QueryHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Matches reports whether the cursor was issued for the dataset and query.
func (c *Cursor) Matches(datasetID, queryHash string) bool {
	return c.Did == datasetID && c.Qh == queryHash
}

// NextOffset computes the next offset after returning n rows.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}

// Page returns the bounds [start,end) of the page at off within total rows,
// and whether more rows follow.
func Page(total, off, size int) (start, end int, more bool) {
	start = min(max(off, 0), total)
	end = min(start+max(size, 0), total)
	return start, end, end < total
}
