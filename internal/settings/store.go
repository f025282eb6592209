package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Kind names one of the documents owned by the Store.
type Kind string

const (
	KindConfig       Kind = "config"
	KindPluginConfig Kind = "plugin_config"
)

// Kinds lists every document kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindConfig, KindPluginConfig}
}

// ErrUnknownKind is returned for a document kind the Store does not own.
var ErrUnknownKind = errors.New("unknown document kind")

// Snapshot is a serialized copy of a document taken at Revision.
type Snapshot struct {
	Kind     Kind
	Revision uint64
	Body     json.RawMessage
}

type docState struct {
	dirty    bool
	revision uint64
}

// Store owns the main config and the plugin config. Store is safe for
// concurrent use; every method is a single critical section.
type Store struct {
	mu     sync.Mutex
	config Config
	plugin map[string]any
	docs   map[Kind]*docState
}

// NewStore creates a Store holding cfg and plugin. Both start clean.
func NewStore(cfg Config, plugin map[string]any) *Store {
	s := &Store{
		docs: map[Kind]*docState{
			KindConfig:       {},
			KindPluginConfig: {},
		},
	}
	s.Load(cfg, plugin)
	return s
}

// Load replaces both documents with freshly loaded ones and marks them clean.
func (s *Store) Load(cfg Config, plugin map[string]any) {
	plugin, err := cloneJSONMap(plugin)
	if err != nil {
		// Values that do not survive a JSON round trip cannot be persisted either.
		plugin = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg.Clone()
	if s.config.UserDetails == nil {
		s.config.UserDetails = map[string]UserDetails{}
	}
	s.plugin = plugin
	for _, d := range s.docs {
		d.dirty = false
	}
}

// touch marks kind dirty and bumps its revision. Caller holds s.mu.
func (s *Store) touch(kind Kind) {
	if d, ok := s.docs[kind]; ok {
		d.dirty = true
		d.revision++
	}
}

// Selected returns the selected user id, if any.
func (s *Store) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Selected.UserID == nil {
		return "", false
	}
	return *s.config.Selected.UserID, true
}

// SetSelected makes userID the selected user.
func (s *Store) SetSelected(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Selected.UserID = &userID
	s.touch(KindConfig)
}

// ClearSelected resets the selection to none.
func (s *Store) ClearSelected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Selected.UserID = nil
	s.touch(KindConfig)
}

// ClearSelectedIf resets the selection only when it currently points at userID.
func (s *Store) ClearSelectedIf(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.config.Selected.UserID
	if sel == nil || *sel != userID {
		return false
	}
	s.config.Selected.UserID = nil
	s.touch(KindConfig)
	return true
}

// UserDetails returns the stored details for userID.
func (s *Store) UserDetails(userID string) (UserDetails, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.config.UserDetails[userID]
	return d, ok
}

// SetUserDetails stores details for userID.
func (s *Store) SetUserDetails(userID string, details UserDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.UserDetails[userID] = details
	s.touch(KindConfig)
}

// RemoveUserDetails deletes the details for userID. Absent entries are a no-op
// and leave the document clean.
func (s *Store) RemoveUserDetails(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.config.UserDetails[userID]; !ok {
		return
	}
	delete(s.config.UserDetails, userID)
	s.touch(KindConfig)
}

// SetLaunchCommand sets the launch command for game. An empty command is
// stored as given and normalized to unset when the document is snapshotted.
func (s *Store) SetLaunchCommand(game Game, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.config.launchCommand(game)
	if err != nil {
		return err
	}
	*field = &command
	s.touch(KindConfig)
	return nil
}

// SetRuneLiteJarPath stores the path of a custom RuneLite jar.
func (s *Store) SetRuneLiteJarPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.RuneLiteJarPath = &path
	s.touch(KindConfig)
}

// Update applies fn to the main config and marks it dirty.
// fn must not retain the pointer.
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.config)
	if s.config.UserDetails == nil {
		s.config.UserDetails = map[string]UserDetails{}
	}
	s.touch(KindConfig)
}

// Config returns a deep copy of the main config.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// SetPluginValue sets key in the plugin config.
func (s *Store) SetPluginValue(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plugin[key] = value
	s.touch(KindPluginConfig)
}

// DeletePluginValue removes key from the plugin config. Absent keys are a no-op.
func (s *Store) DeletePluginValue(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plugin[key]; !ok {
		return
	}
	delete(s.plugin, key)
	s.touch(KindPluginConfig)
}

// PluginConfig returns a deep copy of the plugin config.
func (s *Store) PluginConfig() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := cloneJSONMap(s.plugin)
	if err != nil {
		return map[string]any{}
	}
	return out
}

// MarkDirty flags kind as having unsaved changes.
func (s *Store) MarkDirty(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(kind)
}

// ClearDirty flags kind as saved regardless of revision.
func (s *Store) ClearDirty(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.docs[kind]; ok {
		d.dirty = false
	}
}

// IsDirty reports whether kind has unsaved changes.
func (s *Store) IsDirty(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[kind]
	return ok && d.dirty
}

// Snapshot normalizes and serializes the document of the given kind.
func (s *Store) Snapshot(kind Kind) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[kind]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var (
		body []byte
		err  error
	)
	switch kind {
	case KindConfig:
		s.config.normalize()
		body, err = json.Marshal(s.config)
	case KindPluginConfig:
		body, err = json.Marshal(s.plugin)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding %s: %w", kind, err)
	}

	return Snapshot{Kind: kind, Revision: d.revision, Body: body}, nil
}

// MarkSaved clears the dirty flag of kind if nothing changed since the
// snapshot at revision was taken. It reports whether the flag was cleared.
func (s *Store) MarkSaved(kind Kind, revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[kind]
	if !ok || d.revision != revision {
		return false
	}
	d.dirty = false
	return true
}

func cloneJSONMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
