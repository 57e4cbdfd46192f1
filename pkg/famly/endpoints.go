package famly

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the Famly web app host
	DefaultBaseURL = "https://app.famly.co"

	// ChildrenEndpoint lists the children visible to the account
	ChildrenEndpoint = "/api/v2/calendar/list"

	// TaggedImagesEndpoint returns images tagged with a child, newest first
	TaggedImagesEndpoint = "/api/v2/images/tagged"
)

// ChildrenURL constructs the URL for listing children
func ChildrenURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + ChildrenEndpoint
}

// TaggedImagesURL constructs the URL for one page of a child's tagged images.
// olderThan is omitted when empty.
func TaggedImagesURL(baseURL, childID string, limit int, olderThan string) string {
	params := url.Values{}
	params.Set("childId", childID)
	params.Set("limit", strconv.Itoa(limit))
	if olderThan != "" {
		params.Set("olderThan", olderThan)
	}

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), TaggedImagesEndpoint, params.Encode())
}
