package strategy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shadowtrade/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Profile is a named, reusable strategy configuration. Operators edit
// the profile file; the registry validates and hot-reloads it.
type Profile struct {
	Name        string             `yaml:"-"`
	Strategy    string             `yaml:"strategy"`
	Description string             `yaml:"description"`
	Params      map[string]float64 `yaml:"params"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// ProfileSnapshot is an immutable view of the loaded profiles.
type ProfileSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

// ProfileListener fires after a successful reload.
type ProfileListener func(ProfileSnapshot)

const profileSchemaJSON = `{
  "type": "object",
  "required": ["strategy"],
  "properties": {
    "strategy": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "params": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    }
  },
  "additionalProperties": false
}`

var profileSchema = jsonschema.MustCompileString("profile.json", profileSchemaJSON)

// ProfileRegistry loads strategy profiles from a YAML file and keeps
// them fresh via a file watch. Reload failures keep the previous
// snapshot.
type ProfileRegistry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  ProfileSnapshot
	listeners []ProfileListener
}

// NewProfileRegistry reads the profile file and starts watching it.
func NewProfileRegistry(path string) (*ProfileRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	r := &ProfileRegistry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("profile reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns a copy of the current profile set.
func (r *ProfileRegistry) Snapshot() ProfileSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneProfileSnapshot(r.snapshot)
}

// Profile looks up one profile by name.
func (r *ProfileRegistry) Profile(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(name)]
	return p, ok
}

// Names lists loaded profile names in sorted order.
func (r *ProfileRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Profiles))
	for name := range r.snapshot.Profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OnChange registers a listener called after each successful reload.
func (r *ProfileRegistry) OnChange(fn ProfileListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Resolve returns the strategy kind and merged parameters for a
// profile name.
func (r *ProfileRegistry) Resolve(name string) (Kind, Params, error) {
	p, ok := r.Profile(name)
	if !ok {
		return "", nil, fmt.Errorf("unknown profile: %s", name)
	}
	kind, err := ParseKind(p.Strategy)
	if err != nil {
		return "", nil, err
	}
	return kind, Merge(kind, Params(p.Params)), nil
}

func (r *ProfileRegistry) reload() error {
	cfg, err := readProfileFile(r.path)
	if err != nil {
		return err
	}
	profiles := make(map[string]Profile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p.Name = name
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		profiles[name] = p
	}
	r.mu.Lock()
	r.snapshot = ProfileSnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("Profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	return nil
}

func (r *ProfileRegistry) notifyListeners() {
	r.mu.RLock()
	snap := cloneProfileSnapshot(r.snapshot)
	listeners := append([]ProfileListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ProfileListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("profile listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func validateProfile(p Profile) error {
	doc := map[string]any{"strategy": p.Strategy}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if len(p.Params) > 0 {
		params := make(map[string]any, len(p.Params))
		for k, v := range p.Params {
			params[k] = v
		}
		doc["params"] = params
	}
	if err := profileSchema.Validate(doc); err != nil {
		return err
	}
	if _, err := ParseKind(p.Strategy); err != nil {
		return err
	}
	return nil
}

func cloneProfileSnapshot(src ProfileSnapshot) ProfileSnapshot {
	dst := ProfileSnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for name, p := range src.Profiles {
		dst.Profiles[name] = p
	}
	return dst
}

func readProfileFile(path string) (profileFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return profileFile{}, fmt.Errorf("read profile config failed: %w", err)
	}
	var cfg profileFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return profileFile{}, fmt.Errorf("parse profile config failed: %w", err)
	}
	return cfg, nil
}
