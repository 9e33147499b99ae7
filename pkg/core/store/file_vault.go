package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileVault stores scenarios as one JSON file per ID. It is the local
// fallback when no database is configured.
type FileVault struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFileVault creates a vault in dir, defaulting to .cache/deal_scenarios.
func NewFileVault(dir string) (*FileVault, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "deal_scenarios")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	return &FileVault{dir: dir, now: time.Now}, nil
}

// Save writes the scenario, replacing any previous version.
func (v *FileVault) Save(ctx context.Context, s Scenario) (Scenario, error) {
	if err := ctx.Err(); err != nil {
		return Scenario{}, err
	}
	s, err := prepare(s, v.now())
	if err != nil {
		return Scenario{}, err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to marshal scenario: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Write then rename so a reader never sees half a file.
	tmp := v.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return Scenario{}, fmt.Errorf("failed to save scenario file: %w", err)
	}
	if err := os.Rename(tmp, v.path(s.ID)); err != nil {
		return Scenario{}, fmt.Errorf("failed to save scenario file: %w", err)
	}
	return s, nil
}

// Load reads one scenario.
func (v *FileVault) Load(ctx context.Context, id string) (Scenario, error) {
	if err := ctx.Err(); err != nil {
		return Scenario{}, err
	}
	id, err := normalizeID(id)
	if err != nil {
		return Scenario{}, err
	}

	s, err := v.loadFile(v.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Scenario{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, err
}

// List returns the most recently updated scenarios first. Unreadable files
// are skipped.
func (v *FileVault) List(ctx context.Context, limit int) ([]Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	files, err := os.ReadDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var out []Scenario
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		s, err := v.loadFile(filepath.Join(v.dir, f.Name()))
		if err != nil {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *FileVault) path(id string) string {
	return filepath.Join(v.dir, id+".json")
}

func (v *FileVault) loadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return s, nil
}
