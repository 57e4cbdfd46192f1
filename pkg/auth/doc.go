// Package auth stores and resolves the Famly access token.
//
// A token in the settings file always wins. Otherwise the token saved by
// `famlysync auth set-token` in the system keychain is used, then the
// FAMLY_ACCESS_TOKEN environment variable.
package auth
