package playerpool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	"github.com/parquet-go/parquet-go"
)

// Snapshot persists the population to a parquet file, matching the
// player_list.parquet layout other tooling reads. An advisory file lock
// guards against two simulator processes racing on the same snapshot.
type Snapshot struct {
	path string
}

func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Load reads the persisted population. A missing file is an empty
// population, not an error; an unreadable or unparsable file is a
// configuration error the caller must surface.
func (s *Snapshot) Load() ([]Player, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock snapshot %s: %w", s.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	players, err := parquet.ReadFile[Player](s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return players, nil
}

// Save writes the population atomically: a temp file is renamed over the
// snapshot so readers never observe a partial write.
func (s *Snapshot) Save(players []Player) error {
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot %s: %w", s.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := s.path + ".tmp"
	if err := parquet.WriteFile(tmp, players); err != nil {
		return fmt.Errorf("write snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
