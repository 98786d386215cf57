// Package featureflags evaluates routing policy switches from configuration.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Routing policy flags.
const (
	// AllowRecallTerminal lets a super-administrator recall APPROVED or REJECTED files.
	AllowRecallTerminal = "allow_recall_terminal"
	// AutoDeskProvisioning lets forwards with automatic desk selection create desks on saturation.
	AutoDeskProvisioning = "auto_desk_provisioning"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "allow_recall_terminal=off,auto_desk_provisioning=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a subject (a department ID for routing policy).
// Unset flags fall back to def.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic per-subject rollout, e.g. 25%)
func (m *Manager) Enabled(name string, subjectID uint, def bool) bool {
	if m == nil {
		return def
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return def
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if subjectID == 0 {
			return false
		}
		return rolloutBucket(name, subjectID) < pct
	}

	return def
}

// RecallTerminalAllowed reports whether terminal files may be recalled. Defaults to allowed.
func (m *Manager) RecallTerminalAllowed(departmentID uint) bool {
	return m.Enabled(AllowRecallTerminal, departmentID, true)
}

// AutoDeskProvisioning reports whether saturated departments get desks created on demand.
func (m *Manager) AutoDeskProvisioning(departmentID uint) bool {
	return m.Enabled(AutoDeskProvisioning, departmentID, true)
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, subjectID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), subjectID)))
	return int(h.Sum32() % 100)
}
