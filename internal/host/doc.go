// Package host serves the backing store the launcher persists its documents to.
//
// It implements the remote persistence endpoint consumed by package remote:
// JSON bodies POSTed to the save endpoints are written to a docstore.Store,
// and the matching GET endpoints return the last saved document.
package host
