package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const CacheFile = ".primetarget_cache.yaml"

// Cache remembers the last setup so the dialog opens pre-filled. The
// participant is never cached.
type Cache struct {
	Subgroup   int    `yaml:"subgroup,omitempty"`
	Version    int    `yaml:"version,omitempty"`
	Rotation   string `yaml:"rotation,omitempty"`
	Tracker    string `yaml:"tracker,omitempty"`
	Experiment string `yaml:"experiment,omitempty"`
}

// LoadCache returns an empty cache when the file is missing or unreadable.
func LoadCache(path string) Cache {
	var c Cache
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Cache{}
	}
	return c
}

func (c Cache) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Apply fills the empty entries of f from the cache.
func (c Cache) Apply(f Fields) Fields {
	if f.Subgroup == 0 {
		f.Subgroup = c.Subgroup
	}
	if f.Version == 0 {
		f.Version = c.Version
	}
	if f.Rotation == "" {
		f.Rotation = c.Rotation
	}
	if f.Tracker == "" {
		f.Tracker = c.Tracker
	}
	return f
}

func CacheFrom(f Fields, experiment string) Cache {
	return Cache{
		Subgroup:   f.Subgroup,
		Version:    f.Version,
		Rotation:   f.Rotation,
		Tracker:    f.Tracker,
		Experiment: experiment,
	}
}
