// Package featureflags evaluates runtime feature toggles.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Known flags.
const (
	RankedFeed    = "ranked_feed"
	MetricsEvents = "metrics_events"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "ranked_feed=on,metrics_events=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		set(out, key, value)
	}

	return &Manager{flags: out}
}

type fileFormat struct {
	Flags map[string]string `yaml:"flags"`
}

// LoadFile overlays the flags of a YAML file onto m. The file looks like:
//
//	flags:
//	  ranked_feed: "on"
//	  metrics_events: 50%
func (m *Manager) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read feature flags: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse feature flags %s: %w", path, err)
	}
	for key, value := range f.Flags {
		set(m.flags, key, value)
	}
	return nil
}

func set(flags map[string]string, key, value string) {
	key, value = normalize(key), normalize(value)
	if key == "" || value == "" {
		return
	}
	flags[key] = value
}

// Enabled returns whether a flag is enabled for a given user.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic user rollout, e.g. 25%)
func (m *Manager) Enabled(name string, userID int64) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID int64) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
