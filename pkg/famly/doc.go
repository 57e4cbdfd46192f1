// Package famly is a minimal client for the Famly web API.
//
// Three calls are supported: listing the account's children, fetching one
// page of a child's tagged images (newest first, cursored by olderThan), and
// downloading an image blob. Every non-200 response becomes an
// *errors.Error whose Type tells callers whether the failure is worth
// retrying. The client performs each request once unless the settings ask
// for retries (retry_attempts) or pacing (requests_per_minute).
package famly
