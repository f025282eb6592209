// Package launcher orchestrates login and logout of launcher accounts.
//
// State is the single owned in-memory state of the process: the session list
// and the config documents. It is created at startup, loaded once from the
// backing store and passed to every component that needs it. Service combines
// it with the identity collaborators and the persister.
//
// Login and Logout never persist anything themselves; callers decide when to
// save the config and the credentials.
package launcher
