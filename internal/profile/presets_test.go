package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueFiltersDebugPresets(t *testing.T) {
	c := NewCatalogue()

	for _, p := range c.Visible() {
		assert.False(t, p.Debug, "debug preset %q listed without show-all", p.Name)
	}

	assert.True(t, c.ToggleShowAll())
	var debug int
	for _, p := range c.Visible() {
		if p.Debug {
			debug++
		}
	}
	assert.Greater(t, debug, 0)

	assert.False(t, c.ToggleShowAll())
}

func TestCatalogueUserPresets(t *testing.T) {
	custom := Preset{Name: "Office VPN", Profile: Profile{DelayMS: 30, JitterMS: 5, Enabled: true}}
	c := NewCatalogue(custom)

	got, ok := c.Find("Office VPN")
	require.True(t, ok)
	assert.Equal(t, custom.Profile, got.Profile)

	_, ok = c.Find("No Such Preset")
	assert.False(t, ok)
}

func TestFindIgnoresShowAllFilter(t *testing.T) {
	c := NewCatalogue()
	_, ok := c.Find("Total Loss")
	assert.True(t, ok, "debug presets stay addressable by name")
}
