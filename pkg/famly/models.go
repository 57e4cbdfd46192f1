package famly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Child is a child visible to the authenticated account
type Child struct {
	ID   string `json:"childId"`
	Name string `json:"name"`
}

// Image is one tagged image as returned by the images/tagged endpoint.
// RawCreatedAt keeps the upstream string so it can be echoed back as the
// olderThan cursor without reformatting.
type Image struct {
	ID           string    `json:"imageId"`
	URLBig       string    `json:"url_big"`
	URL          string    `json:"url,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	RawCreatedAt string    `json:"createdAt"`
	CreatedAt    time.Time `json:"-"`
}

// createdAtLayouts are tried in order; the last two cover timestamps without an offset
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an upstream createdAt value. Values without an
// offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UnmarshalJSON decodes an image and parses its createdAt
func (i *Image) UnmarshalJSON(data []byte) error {
	type plain Image
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	created, err := ParseTimestamp(p.RawCreatedAt)
	if err != nil {
		return fmt.Errorf("image %s: %w", p.ID, err)
	}
	p.CreatedAt = created

	*i = Image(p)
	return nil
}

// childrenResponse is the calendar/list payload
type childrenResponse struct {
	Children []Child `json:"children"`
}

// decodeChildren accepts {"children":[...]} or a bare array
func decodeChildren(body []byte) ([]Child, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var children []Child
		if err := json.Unmarshal(trimmed, &children); err != nil {
			return nil, err
		}
		return children, nil
	}

	var resp childrenResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, err
	}
	return resp.Children, nil
}
