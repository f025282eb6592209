// Package docstore provides persistent storage for serialized launcher documents.
//
// Two backends with different security tradeoffs:
//   - File: local filesystem storage with atomic writes and owner-only permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, Secret Service)
//
// Config documents live in files; the credentials document, which holds OAuth
// tokens, may be kept in the keyring instead.
package docstore
