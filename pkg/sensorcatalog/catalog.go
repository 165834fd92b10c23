// Package sensorcatalog classifies WeatherLink sensor-type codes into the
// device families the observation normalizer dispatches on. The tables are
// versioned data: a default catalog is compiled in and a YAML file may
// replace it without touching extraction code.
package sensorcatalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultVersion labels the compiled-in catalog revision.
const DefaultVersion = "2024.06"

// Pair identifies a vendor record shape by sensor type and data structure type.
type Pair struct {
	SensorType        int `yaml:"sensor_type" json:"sensor_type"`
	DataStructureType int `yaml:"data_structure_type" json:"data_structure_type"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%d/%d", p.SensorType, p.DataStructureType)
}

// Catalog holds the classification tables for one catalog revision.
type Catalog struct {
	Version string

	consoleVue       map[int]struct{}
	issCurrentExtra  map[int]struct{}
	airLink          map[int]struct{}
	soilLeaf         map[int]struct{}
	indoorPatches    map[Pair]struct{}
	barometerPatches map[Pair]struct{}
}

// catalogYAML is the on-disk representation of a catalog.
type catalogYAML struct {
	Version              string `yaml:"version"`
	ConsoleVueTypes      []int  `yaml:"console_vue_types"`
	ISSCurrentExtraTypes []int  `yaml:"iss_current_extra_types"`
	AirLinkTypes         []int  `yaml:"airlink_types"`
	SoilLeafTypes        []int  `yaml:"soil_leaf_types"`
	IndoorPatches        []Pair `yaml:"indoor_patches"`
	BarometerPatches     []Pair `yaml:"barometer_patches"`
}

var defaultTables = catalogYAML{
	Version: DefaultVersion,
	ConsoleVueTypes: []int{
		23, 24, 27, 28, 33, 34, 37, 43, 44, 45, 46, 48, 49, 50, 51,
		76, 77, 78, 79, 80, 81, 82, 83, 84, 85, 87,
	},
	ISSCurrentExtraTypes: []int{55},
	AirLinkTypes:         []int{323, 326},
	SoilLeafTypes:        []int{56},
	IndoorPatches: []Pair{
		{SensorType: 365, DataStructureType: 21},
		{SensorType: 243, DataStructureType: 12},
	},
	BarometerPatches: []Pair{
		{SensorType: 242, DataStructureType: 12},
		{SensorType: 242, DataStructureType: 19},
	},
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	return fromYAML(defaultTables)
}

// Load reads a catalog from a YAML file. Families omitted from the file keep
// their default tables so a file only needs to carry what it changes.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sensor catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sensor catalog: %w", err)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("sensor catalog is missing a version")
	}
	if doc.ConsoleVueTypes == nil {
		doc.ConsoleVueTypes = defaultTables.ConsoleVueTypes
	}
	if doc.ISSCurrentExtraTypes == nil {
		doc.ISSCurrentExtraTypes = defaultTables.ISSCurrentExtraTypes
	}
	if doc.AirLinkTypes == nil {
		doc.AirLinkTypes = defaultTables.AirLinkTypes
	}
	if doc.SoilLeafTypes == nil {
		doc.SoilLeafTypes = defaultTables.SoilLeafTypes
	}
	if doc.IndoorPatches == nil {
		doc.IndoorPatches = defaultTables.IndoorPatches
	}
	if doc.BarometerPatches == nil {
		doc.BarometerPatches = defaultTables.BarometerPatches
	}

	c := fromYAML(doc)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func fromYAML(doc catalogYAML) *Catalog {
	return &Catalog{
		Version:          doc.Version,
		consoleVue:       intSet(doc.ConsoleVueTypes),
		issCurrentExtra:  intSet(doc.ISSCurrentExtraTypes),
		airLink:          intSet(doc.AirLinkTypes),
		soilLeaf:         intSet(doc.SoilLeafTypes),
		indoorPatches:    pairSet(doc.IndoorPatches),
		barometerPatches: pairSet(doc.BarometerPatches),
	}
}

// Validate rejects catalogs whose families overlap, since an overlapping code
// would make dispatch depend on table build order.
func (c *Catalog) Validate() error {
	families := []struct {
		name string
		set  map[int]struct{}
	}{
		{"console_vue_types", c.consoleVue},
		{"iss_current_extra_types", c.issCurrentExtra},
		{"airlink_types", c.airLink},
		{"soil_leaf_types", c.soilLeaf},
	}

	seen := make(map[int]string)
	for _, f := range families {
		for code := range f.set {
			if other, ok := seen[code]; ok {
				return fmt.Errorf("sensor type %d is listed in both %s and %s", code, other, f.name)
			}
			seen[code] = f.name
		}
	}

	for p := range c.indoorPatches {
		if _, ok := c.barometerPatches[p]; ok {
			return fmt.Errorf("pair %s is both an indoor and a barometer patch", p)
		}
	}
	return nil
}

// IsConsoleVue reports whether code identifies a Vantage Pro/Vue console or transmitter.
func (c *Catalog) IsConsoleVue(code int) bool {
	_, ok := c.consoleVue[code]
	return ok
}

// IsISSCurrent reports whether code may carry ISS current records (structures 10 and 23).
func (c *Catalog) IsISSCurrent(code int) bool {
	if c.IsConsoleVue(code) {
		return true
	}
	_, ok := c.issCurrentExtra[code]
	return ok
}

// IsISSCurrentExtra reports whether code is a standalone ISS transmitter
// outside the console family.
func (c *Catalog) IsISSCurrentExtra(code int) bool {
	_, ok := c.issCurrentExtra[code]
	return ok
}

// IsAirLink reports whether code identifies an AirLink air-quality monitor.
func (c *Catalog) IsAirLink(code int) bool {
	_, ok := c.airLink[code]
	return ok
}

// IsSoilLeaf reports whether code identifies a soil/leaf station.
func (c *Catalog) IsSoilLeaf(code int) bool {
	_, ok := c.soilLeaf[code]
	return ok
}

// IsIndoorPatch reports whether p is an indoor temperature/humidity sensor
// that feeds the primary transmitter.
func (c *Catalog) IsIndoorPatch(p Pair) bool {
	_, ok := c.indoorPatches[p]
	return ok
}

// IsBarometerPatch reports whether p is an external barometer that feeds the
// primary transmitter.
func (c *Catalog) IsBarometerPatch(p Pair) bool {
	_, ok := c.barometerPatches[p]
	return ok
}

func (c *Catalog) ConsoleVueTypes() []int      { return sortedInts(c.consoleVue) }
func (c *Catalog) ISSCurrentExtraTypes() []int { return sortedInts(c.issCurrentExtra) }
func (c *Catalog) AirLinkTypes() []int         { return sortedInts(c.airLink) }
func (c *Catalog) SoilLeafTypes() []int        { return sortedInts(c.soilLeaf) }
func (c *Catalog) IndoorPatches() []Pair       { return sortedPairs(c.indoorPatches) }
func (c *Catalog) BarometerPatches() []Pair    { return sortedPairs(c.barometerPatches) }

func intSet(codes []int) map[int]struct{} {
	s := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func pairSet(pairs []Pair) map[Pair]struct{} {
	s := make(map[Pair]struct{}, len(pairs))
	for _, p := range pairs {
		s[p] = struct{}{}
	}
	return s
}

func sortedInts(s map[int]struct{}) []int {
	out := make([]int, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func sortedPairs(s map[Pair]struct{}) []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SensorType != out[j].SensorType {
			return out[i].SensorType < out[j].SensorType
		}
		return out[i].DataStructureType < out[j].DataStructureType
	})
	return out
}
