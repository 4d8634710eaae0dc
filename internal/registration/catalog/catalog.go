// Package catalog lists the countries the dashboard knows how to draw and,
// in strict mode, the only countries a registration may name.
//
// Map paths are illustrative placeholders, not a geographic projection.
package catalog

import "strings"

// Country is a catalog entry. Path is empty for countries without a map shape;
// they still appear in the grid view.
type Country struct {
	Name string
	Path string
}

// Catalog resolves country names case-insensitively.
type Catalog struct {
	countries []Country
	byKey     map[string]int
}

// New builds a catalog preserving the given order.
func New(countries []Country) *Catalog {
	c := &Catalog{
		countries: make([]Country, len(countries)),
		byKey:     make(map[string]int, len(countries)),
	}
	copy(c.countries, countries)
	for i, country := range c.countries {
		c.byKey[key(country.Name)] = i
	}
	return c
}

// Africa returns the default catalog of African countries.
func Africa() *Catalog {
	countries := make([]Country, 0, len(africanCountryNames))
	for _, name := range africanCountryNames {
		countries = append(countries, Country{Name: name, Path: illustrativePaths[name]})
	}
	return New(countries)
}

// Lookup returns the canonical entry for name.
func (c *Catalog) Lookup(name string) (Country, bool) {
	if c == nil {
		return Country{}, false
	}
	i, ok := c.byKey[key(name)]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

// Canonical returns the catalog spelling of name, or name unchanged when unknown.
func (c *Catalog) Canonical(name string) string {
	if country, ok := c.Lookup(name); ok {
		return country.Name
	}
	return name
}

// Drawable returns the entries that have a map path, in catalog order.
func (c *Catalog) Drawable() []Country {
	if c == nil {
		return nil
	}
	var out []Country
	for _, country := range c.countries {
		if country.Path != "" {
			out = append(out, country)
		}
	}
	return out
}

// Names returns every country name in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.countries))
	for i, country := range c.countries {
		names[i] = country.Name
	}
	return names
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.countries)
}

func key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

var illustrativePaths = map[string]string{
	"Nigeria":      "M400,350 L420,360 L430,350 L440,340 L450,330 L460,320 L470,310 L480,300",
	"Ghana":        "M380,340 L390,335 L400,330 L410,325 L420,320",
	"South Africa": "M420,500 L430,490 L440,480 L450,470 L460,460",
	"Kenya":        "M450,380 L460,370 L470,360 L480,350",
	"Ethiopia":     "M440,360 L450,350 L460,340 L470,330",
	"Egypt":        "M420,300 L430,290 L440,280 L450,270",
}

// The drawable countries come first so the map renders them in a stable order.
var africanCountryNames = []string{
	"Nigeria", "Ghana", "South Africa", "Kenya", "Ethiopia", "Egypt",
	"Algeria", "Angola", "Benin", "Botswana", "Burkina Faso", "Burundi",
	"Cabo Verde", "Cameroon", "Central African Republic", "Chad", "Comoros",
	"Democratic Republic of the Congo", "Republic of the Congo", "Côte d'Ivoire",
	"Djibouti", "Equatorial Guinea", "Eritrea", "Eswatini", "Gabon", "Gambia",
	"Guinea", "Guinea-Bissau", "Lesotho", "Liberia", "Libya", "Madagascar",
	"Malawi", "Mali", "Mauritania", "Mauritius", "Morocco", "Mozambique",
	"Namibia", "Niger", "Rwanda", "São Tomé and Príncipe", "Senegal",
	"Seychelles", "Sierra Leone", "Somalia", "South Sudan", "Sudan", "Tanzania",
	"Togo", "Tunisia", "Uganda", "Zambia", "Zimbabwe",
}
