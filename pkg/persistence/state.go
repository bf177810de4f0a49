package persistence

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// StationState contains the runtime state of a station.
type StationState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// InstanceID identifies the station in service discovery.
	InstanceID string `json:"instance_id"`

	// LastConnection describes the most recent successful connect.
	LastConnection *ConnectionRecord `json:"last_connection,omitempty"`

	// ConnectCount counts successful connects over the station's lifetime.
	ConnectCount uint64 `json:"connect_count,omitempty"`
}

// ConnectionRecord captures one successful connection.
type ConnectionRecord struct {
	SSID          string    `json:"ssid"`
	IPv4          string    `json:"ipv4,omitempty"`
	IPv6LinkLocal string    `json:"ipv6_link_local,omitempty"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// StationStateStore manages persistence of station state to a JSON file.
type StationStateStore struct {
	mu   sync.Mutex
	path string
}

// NewStationStateStore creates a new station state store.
func NewStationStateStore(path string) *StationStateStore {
	return &StationStateStore{path: path}
}

// Path returns the state file path.
func (s *StationStateStore) Path() string {
	return s.path
}

// Save persists the station state to disk.
func (s *StationStateStore) Save(state *StationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

func (s *StationStateStore) saveLocked(state *StationState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file and rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the station state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StationStateStore) Load() (*StationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *StationStateStore) loadLocked() (*StationState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &StationState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// LoadOrInit loads the state, creating and saving a fresh one with a new
// instance ID when the file is missing or has no ID.
func (s *StationStateStore) LoadOrInit() (*StationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if state != nil && state.InstanceID != "" {
		return state, nil
	}
	if state == nil {
		state = &StationState{}
	}
	state.InstanceID = NewInstanceID()
	if err := s.saveLocked(state); err != nil {
		return nil, err
	}
	return state, nil
}

// RecordConnection stores rec as the last connection and bumps the count.
func (s *StationStateStore) RecordConnection(rec ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	if state == nil {
		state = &StationState{InstanceID: NewInstanceID()}
	}
	if rec.ConnectedAt.IsZero() {
		rec.ConnectedAt = time.Now()
	}
	state.LastConnection = &rec
	state.ConnectCount++
	return s.saveLocked(state)
}

// Clear removes the state file.
func (s *StationStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// NewInstanceID returns the first 12 hex digits of a random UUID.
func NewInstanceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}
