package usecase

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a curated subreddit bundle targeting one ICP. Users adopt a
// preset instead of hand-picking subreddits.
type Preset struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Subreddits  []string `yaml:"subreddits"`
	Listing     string   `yaml:"listing"`
	Limit       int      `yaml:"limit"`
}

var (
	presetsOnce sync.Once
	presetList  []Preset
	presetIndex map[string]Preset
)

func loadPresets() {
	presetsOnce.Do(func() {
		if err := yaml.Unmarshal(presetsYAML, &presetList); err != nil {
			panic(fmt.Sprintf("embedded preset catalog invalid: %v", err))
		}
		presetIndex = make(map[string]Preset, len(presetList))
		for _, p := range presetList {
			presetIndex[p.Key] = p
		}
	})
}

// Presets returns the preset catalog in file order.
func Presets() []Preset {
	loadPresets()
	return presetList
}

// PresetByKey looks up one preset.
func PresetByKey(key string) (Preset, bool) {
	loadPresets()
	p, ok := presetIndex[key]
	return p, ok
}

// SourceSetService manages curated subreddit bundles.
type SourceSetService struct {
	Sets domain.SourceSetRepository
}

// NewSourceSetService constructs a SourceSetService with its dependency.
func NewSourceSetService(sets domain.SourceSetRepository) *SourceSetService {
	return &SourceSetService{Sets: sets}
}

// AdoptPreset creates a source set from a preset. A preset may be adopted
// only while no active source set references it.
func (s *SourceSetService) AdoptPreset(ctx context.Context, key string) (int64, error) {
	preset, ok := PresetByKey(key)
	if !ok {
		return 0, fmt.Errorf("op=source_sets.adopt: %w: unknown preset %q", domain.ErrInvalidArgument, key)
	}
	if _, err := s.Sets.GetByPreset(ctx, key); err == nil {
		return 0, fmt.Errorf("op=source_sets.adopt: %w: preset %q already adopted", domain.ErrConflict, key)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("op=source_sets.adopt: %w", err)
	}

	id, err := s.Sets.Create(ctx, domain.SourceSet{
		Name:        preset.Name,
		Description: preset.Description,
		PresetKey:   &preset.Key,
		Subreddits:  preset.Subreddits,
		Listing:     preset.Listing,
		LimitPerSub: preset.Limit,
	})
	if err != nil {
		return 0, fmt.Errorf("op=source_sets.adopt: %w", err)
	}
	return id, nil
}

// ActiveSubreddits resolves the union of subreddits across active source
// sets, falling back to the given defaults when no set is active.
func (s *SourceSetService) ActiveSubreddits(ctx context.Context, fallback []string) ([]string, error) {
	subreddits, err := s.Sets.AllActiveSubreddits(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=source_sets.active_subreddits: %w", err)
	}
	if len(subreddits) == 0 {
		return fallback, nil
	}
	return subreddits, nil
}
