package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"famlysync/pkg/logger"
)

// State is the on-disk checkpoint record.
//
// Children maps a child id to the createdAt of the newest image synced for it.
// CutoffDate is the single shared cutoff written by older versions; it is
// used for any child without its own entry and is kept as read on rewrite.
type State struct {
	CutoffDate string            `json:"cutoff_date,omitempty"`
	Children   map[string]string `json:"children,omitempty"`
}

// CutoffFor returns the cutoff active for childID, or nil when every image is new
func (s *State) CutoffFor(childID string) *time.Time {
	raw, ok := s.Children[childID]
	if !ok {
		raw = s.CutoffDate
	}
	if raw == "" {
		return nil
	}

	t, err := parseTimestamp(raw)
	if err != nil {
		return nil
	}
	return &t
}

// ChildIDs returns the ids with their own entry, sorted
func (s *State) ChildIDs() []string {
	ids := make([]string, 0, len(s.Children))
	for id := range s.Children {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsEmpty reports whether no cutoff of any kind is stored
func (s *State) IsEmpty() bool {
	return s.CutoffDate == "" && len(s.Children) == 0
}

func (s *State) validate() error {
	if s.CutoffDate != "" {
		if _, err := parseTimestamp(s.CutoffDate); err != nil {
			return fmt.Errorf("cutoff_date: %w", err)
		}
	}
	for id, raw := range s.Children {
		if _, err := parseTimestamp(raw); err != nil {
			return fmt.Errorf("children[%s]: %w", id, err)
		}
	}
	return nil
}

// Store reads and writes the checkpoint file
type Store struct {
	path   string
	state  *State
	logger logger.Logger
}

// NewStore creates a store backed by the JSON file at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:   path,
		logger: log,
	}
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint file. An absent file is created as {} and an
// empty one is treated the same way; anything unparseable is an error.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
		}

		s.state = &State{}
		if err := s.write(); err != nil {
			return nil, err
		}
		s.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
			"path": s.path,
		})
		return s.state, nil
	}

	state := &State{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, state); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", s.path, err)
		}
		if err := state.validate(); err != nil {
			return nil, fmt.Errorf("invalid checkpoint %s: %w", s.path, err)
		}
	}

	s.state = state
	s.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"path":        s.path,
		"children":    len(state.Children),
		"cutoff_date": state.CutoffDate,
	})

	return state, nil
}

// State returns the loaded state, loading it on first use
func (s *Store) State() (*State, error) {
	if s.state != nil {
		return s.state, nil
	}
	return s.Load()
}

// Save records ts as the newest synced image for childID and rewrites the file
func (s *Store) Save(childID string, ts time.Time) error {
	state, err := s.State()
	if err != nil {
		return err
	}

	if state.Children == nil {
		state.Children = make(map[string]string)
	}
	state.Children[childID] = ts.Format(time.RFC3339Nano)

	if err := s.write(); err != nil {
		return err
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"child_id": childID,
		"cutoff":   state.Children[childID],
	})
	return nil
}

// Reset removes the entry for childID. An empty childID clears every entry,
// including the legacy cutoff_date.
func (s *Store) Reset(childID string) error {
	state, err := s.State()
	if err != nil {
		return err
	}

	if childID == "" {
		*state = State{}
	} else {
		delete(state.Children, childID)
	}

	return s.write()
}

// write replaces the checkpoint file atomically via a temp file and rename
func (s *Store) write() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
