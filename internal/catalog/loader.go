package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/group03/phychat-backend/internal/models"
)

// ErrEmptyCatalog is returned when a catalog file holds no challenges
var ErrEmptyCatalog = errors.New("catalog has no challenges")

// Loader reads the challenge catalog from a YAML file and caches it
type Loader struct {
	path string

	mu         sync.RWMutex
	challenges []models.Challenge
}

// NewLoader creates a loader for the given YAML file
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load (re)reads the catalog file
func (l *Loader) Load() error {
	slog.Info("loading challenge catalog", "file", l.path)

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	challenges, err := Parse(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.challenges = challenges
	l.mu.Unlock()

	slog.Info("challenge catalog loaded", "file", l.path, "count", len(challenges))
	return nil
}

// GetAllChallenges returns the catalog in file order, loading it on first use
func (l *Loader) GetAllChallenges(ctx context.Context) ([]models.Challenge, error) {
	if list := l.List(); len(list) > 0 {
		return list, nil
	}

	if err := l.Load(); err != nil {
		return nil, err
	}
	return l.List(), nil
}

// List returns a copy of the loaded challenges
func (l *Loader) List() []models.Challenge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.Challenge, len(l.challenges))
	copy(result, l.challenges)
	return result
}

// Parse decodes and validates a YAML catalog document
func Parse(data []byte) ([]models.Challenge, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(cf.Challenges) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]bool, len(cf.Challenges))
	for i, c := range cf.Challenges {
		if c.ID == "" {
			return nil, fmt.Errorf("challenge %d: id is required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("challenge %s: duplicate id", c.ID)
		}
		seen[c.ID] = true

		if c.Title == "" {
			return nil, fmt.Errorf("challenge %s: title is required", c.ID)
		}
		if !c.Difficulty.Valid() {
			return nil, fmt.Errorf("challenge %s: invalid difficulty %q", c.ID, c.Difficulty)
		}
		if c.ErrorType == "" {
			cf.Challenges[i].ErrorType = models.LogicError
		}
	}

	return cf.Challenges, nil
}

// catalogFile represents the YAML structure of the catalog file
type catalogFile struct {
	Challenges []models.Challenge `yaml:"challenges"`
}
