// Package persona provides the tone-of-voice definitions the resolver
// puts at the top of its system prompt.
package persona

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Persona is one voice the bot can answer in. System is the prompt
// fragment describing it; the resolver appends the command catalog and
// response contract after it.
type Persona struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
}

// Library holds loaded personas and serves lookups by name.
type Library struct {
	personas map[string]Persona
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewLibrary(logger *slog.Logger) *Library {
	l := &Library{
		personas: make(map[string]Persona),
		logger:   logger,
	}
	l.Register(Default())
	return l
}

// Default is the built-in persona used when no file overrides it.
func Default() Persona {
	return Persona{
		Name:        "assistant",
		Description: "Friendly general-purpose chat assistant",
		System: "You are a helpful WhatsApp assistant for a study group. " +
			"Keep replies short and conversational. WhatsApp formatting applies: " +
			"*bold*, _italic_ and ``` for code. Reply in the sender's language.",
	}
}

// Register adds a persona, replacing any existing one with the same name.
func (l *Library) Register(p Persona) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.personas[p.Name] = p
}

// Get returns the named persona, falling back to the default when the
// name is unknown or empty.
func (l *Library) Get(name string) Persona {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.personas[name]; ok {
		return p
	}
	if name != "" {
		l.logger.Warn("unknown persona, using default", "name", name)
	}
	return l.personas[Default().Name]
}

// List returns all personas sorted by name.
func (l *Library) List() []Persona {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Persona, 0, len(l.personas))
	for _, p := range l.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadDirectory reads persona YAML files from dir. Malformed files are
// logged and skipped so one bad file cannot take the bot down.
func (l *Library) LoadDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Debug("persona directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read persona dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("cannot read persona file", "path", path, "err", err)
			continue
		}

		var p Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			l.logger.Warn("cannot parse persona file", "path", path, "err", err)
			continue
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if p.System == "" {
			l.logger.Warn("persona has no system text, skipping", "path", path)
			continue
		}

		l.Register(p)
		l.logger.Info("loaded persona", "name", p.Name, "path", path)
	}

	return nil
}
