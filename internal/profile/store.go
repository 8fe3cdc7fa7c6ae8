package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Key-value names used in workspace and global storage.
const (
	ActiveProfileKey       = "activeProfileId"
	LegacyUserProfilesKey  = "userProfiles"
	MigrationCompletedKey  = "profileMigrationCompleted"
	profilesFileName       = "profiles.json"
	profilesFilePermission = 0o644
)

// KeyValue is the host key-value storage the store persists small values in.
// Get returns "" with a nil error when the key is absent.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Store reads and writes user profiles in <dir>/profiles.json. Every
// read-modify-write goes through Update, which holds the store lock for
// the whole sequence.
type Store struct {
	dir string
	log zerolog.Logger
	mu  sync.Mutex
}

// NewStore returns a store rooted at the project configuration directory.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Path returns the location of the profiles file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, profilesFileName)
}

// Load returns the user profiles. Read failures are logged and degrade to
// an empty list.
func (s *Store) Load() []AnalysisProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// All returns bundled profiles followed by the user profiles.
func (s *Store) All() []AnalysisProfile {
	return Merge(s.Load())
}

// Save replaces the persisted user profiles. Read-only entries are dropped.
func (s *Store) Save(profiles []AnalysisProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(profiles)
}

// Update reads the user profiles, passes them to fn and writes back what fn
// returns. Returning an error from fn aborts without writing. The returned
// slice is what was persisted.
func (s *Store) Update(fn func(user []AnalysisProfile) ([]AnalysisProfile, error)) ([]AnalysisProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.load())
	if err != nil {
		return nil, err
	}
	next = UserOnly(next)
	if err := s.save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Init creates the configuration directory and an empty profiles file when
// they do not exist yet.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if _, err := os.Stat(s.Path()); errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.save([]AnalysisProfile{})
	}
	return nil
}

func (s *Store) load() []AnalysisProfile {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.Path()).Msg("could not read project profiles")
		}
		return []AnalysisProfile{}
	}

	var profiles []AnalysisProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		s.log.Warn().Err(err).Str("path", s.Path()).Msg("could not parse project profiles")
		return []AnalysisProfile{}
	}
	if profiles == nil {
		profiles = []AnalysisProfile{}
	}
	return profiles
}

func (s *Store) save(profiles []AnalysisProfile) error {
	if profiles == nil {
		profiles = []AnalysisProfile{}
	}
	data, err := json.MarshalIndent(UserOnly(profiles), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, profilesFilePermission); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

// MigrateLegacy moves profiles kept under the legacy global key into the
// project file, once. Profiles whose id already exists in the project are
// skipped. The completion flag is only set when the migration succeeds so a
// failed attempt is retried on the next start.
func (s *Store) MigrateLegacy(global KeyValue) error {
	done, err := global.Get(MigrationCompletedKey)
	if err != nil {
		return fmt.Errorf("read migration flag: %w", err)
	}
	if done == "true" {
		return nil
	}

	raw, err := global.Get(LegacyUserProfilesKey)
	if err != nil {
		return fmt.Errorf("read legacy profiles: %w", err)
	}

	var legacy []AnalysisProfile
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			return fmt.Errorf("parse legacy profiles: %w", err)
		}
	}

	if len(legacy) > 0 {
		_, err := s.Update(func(user []AnalysisProfile) ([]AnalysisProfile, error) {
			for _, p := range legacy {
				if _, ok := Find(user, p.ID); !ok {
					user = append(user, p)
				}
			}
			return user, nil
		})
		if err != nil {
			return fmt.Errorf("save migrated profiles: %w", err)
		}
		s.log.Info().Int("count", len(legacy)).Msg("migrated profiles from global to project storage")
	}

	return global.Set(MigrationCompletedKey, "true")
}

// LoadActiveID returns the persisted active profile id.
func LoadActiveID(kv KeyValue) (string, error) {
	return kv.Get(ActiveProfileKey)
}

// SaveActiveID persists the active profile id.
func SaveActiveID(kv KeyValue, id string) error {
	if err := kv.Set(ActiveProfileKey, id); err != nil {
		return fmt.Errorf("save active profile id: %w", err)
	}
	return nil
}

// ResolveActiveID picks the stored id when it names a known profile, else the
// first profile, else "".
func ResolveActiveID(profiles []AnalysisProfile, stored string) string {
	if stored != "" {
		if _, ok := Find(profiles, stored); ok {
			return stored
		}
	}
	if len(profiles) > 0 {
		return profiles[0].ID
	}
	return ""
}
