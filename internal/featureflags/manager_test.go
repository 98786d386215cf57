package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	assert.True(t, m.Enabled("a", 1, false))
	assert.True(t, m.Enabled("c", 1, false))
	assert.True(t, m.Enabled("e", 1, false))
	assert.False(t, m.Enabled("b", 1, true))
	assert.False(t, m.Enabled("d", 1, true))
	assert.False(t, m.Enabled("f", 1, true))
}

func TestEnabled_DefaultsWhenUnset(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.Enabled("missing", 1, true))
	assert.False(t, m.Enabled("missing", 1, false))

	var nilManager *Manager
	assert.True(t, nilManager.RecallTerminalAllowed(3))
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", 1, false))
	assert.False(t, m.Enabled("never", 1, true))
	assert.False(t, m.Enabled("canary", 0, true), "department 0 never joins a partial rollout")

	first := m.Enabled("canary", 42, false)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42, false), "rollout must be deterministic per department")
	}
}

func TestRoutingPolicies(t *testing.T) {
	assert.True(t, NewManager("").RecallTerminalAllowed(1))
	assert.False(t, NewManager("allow_recall_terminal=off").RecallTerminalAllowed(1))
	assert.True(t, NewManager(" AUTO_DESK_PROVISIONING = ON ").AutoDeskProvisioning(9))
	assert.False(t, NewManager("auto_desk_provisioning=false").AutoDeskProvisioning(9))
}

func TestRaw_ReturnsCopy(t *testing.T) {
	m := NewManager("x=on")
	raw := m.Raw()
	raw["x"] = "off"
	assert.True(t, m.Enabled("x", 1, false))
}
