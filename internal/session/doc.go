// Package session holds the in-memory list of authenticated launcher sessions.
//
// A Session pairs the identity of a user (and the game accounts that belong to
// it) with the OAuth tokens obtained at login. The Store keeps at most one
// Session per user id and applies every mutation as a single critical section,
// so readers never observe a half-updated list.
package session
