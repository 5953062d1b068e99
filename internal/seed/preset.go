// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset sizes a seeding run. It is usually read from a YAML file:
//
//	users: 50
//	posts_per_user: 8
//	reaction_probability: 0.25
type Preset struct {
	Users               int     `yaml:"users"`
	PostsPerUser        int     `yaml:"posts_per_user"`
	ReactionProbability float64 `yaml:"reaction_probability"`
	MaxDays             int     `yaml:"max_days"`
	Clean               bool    `yaml:"clean"`
}

// DefaultPreset is used when no preset file is given.
var DefaultPreset = Preset{
	Users:               20,
	PostsPerUser:        5,
	ReactionProbability: 0.3,
	MaxDays:             30,
	Clean:               true,
}

// LoadPreset decodes a YAML preset. Omitted sizes fall back to DefaultPreset.
func LoadPreset(r io.Reader) (Preset, error) {
	p := DefaultPreset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// LoadPresetFile reads the preset at path.
func LoadPresetFile(path string) (Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Preset{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadPreset(f)
}

func (p Preset) Validate() error {
	if p.Users < 1 {
		return errors.New("users must be at least 1")
	}
	if p.PostsPerUser < 0 {
		return errors.New("posts_per_user must not be negative")
	}
	if p.ReactionProbability < 0 || p.ReactionProbability > 1 {
		return errors.New("reaction_probability must be between 0 and 1")
	}
	if p.MaxDays < 1 {
		return errors.New("max_days must be at least 1")
	}
	return nil
}
