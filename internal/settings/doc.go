// Package settings owns the two configuration documents of the launcher: the
// main config and the plugin config.
//
// Every mutator marks its document dirty and bumps the document revision.
// Snapshots carry the revision they were taken at, so a save that completes
// after further edits does not clear the dirty flag for changes it never sent.
package settings
