package profile

// Preset is a named, ready-to-apply network condition profile.
type Preset struct {
	Name    string
	Profile Profile
	// Debug marks presets meant for breaking things on purpose. They are
	// hidden from the catalogue unless "show all" is toggled on.
	Debug bool
}

// builtinPresets approximate common real-world connections. Numbers are
// one-way per-packet values.
var builtinPresets = []Preset{
	{Name: "Ideal", Profile: Profile{Enabled: true}},
	{Name: "Home Broadband", Profile: Profile{DelayMS: 2, JitterMS: 1, Enabled: true}},
	{Name: "Mobile 5G", Profile: Profile{DelayMS: 15, JitterMS: 5, Enabled: true}},
	{Name: "Mobile 4G", Profile: Profile{DelayMS: 50, JitterMS: 15, DropPercent: 1, Enabled: true}},
	{Name: "Mobile 3G", Profile: Profile{DelayMS: 100, JitterMS: 30, DropPercent: 3, Enabled: true}},
	{Name: "Mobile 2.5G", Profile: Profile{DelayMS: 200, JitterMS: 50, DropPercent: 5, Enabled: true}},
	{Name: "Mobile 2G", Profile: Profile{DelayMS: 400, JitterMS: 100, DropPercent: 7, Enabled: true}},
	{Name: "Satellite", Profile: Profile{DelayMS: 600, JitterMS: 50, DropPercent: 2, Enabled: true}},
	{Name: "Poor Connection", Profile: Profile{DelayMS: 200, JitterMS: 100, DropPercent: 20, Enabled: true}},
	{Name: "Total Loss", Profile: Profile{DropPercent: 100, Enabled: true}, Debug: true},
	{Name: "Heavy Corruption", Profile: Profile{DelayMS: 50, JitterMS: 10, FuzzPercent: 30, Enabled: true}, Debug: true},
}

// Catalogue holds the preset list offered to the user: the built-in table
// plus any user-supplied presets. Debug presets are filtered out unless
// "show all" is on.
type Catalogue struct {
	presets []Preset
	showAll bool
}

// NewCatalogue creates a catalogue of the built-in presets plus extras.
func NewCatalogue(extra ...Preset) *Catalogue {
	presets := make([]Preset, 0, len(builtinPresets)+len(extra))
	presets = append(presets, builtinPresets...)
	presets = append(presets, extra...)
	return &Catalogue{presets: presets}
}

// ToggleShowAll flips whether debug presets are listed and returns the new
// setting.
func (c *Catalogue) ToggleShowAll() bool {
	c.showAll = !c.showAll
	return c.showAll
}

// ShowAll reports whether debug presets are currently listed.
func (c *Catalogue) ShowAll() bool {
	return c.showAll
}

// Visible returns the presets currently offered.
func (c *Catalogue) Visible() []Preset {
	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		if p.Debug && !c.showAll {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Find looks up a preset by name, regardless of the show-all filter.
func (c *Catalogue) Find(name string) (Preset, bool) {
	for _, p := range c.presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
