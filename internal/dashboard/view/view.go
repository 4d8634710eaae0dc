// Package view turns an aggregated snapshot into the dashboard view model.
// Build is pure: the same snapshot, catalog, clock and location always yield
// the same ViewModel.
package view

import (
	"fmt"
	"time"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/aggregate"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/catalog"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/colorscale"
)

// Stable DOM ids of the dashboard regions.
const (
	IDTotalCount         = "total-count"
	IDUniqueCountryCount = "unique-country-count"
	IDTopList            = "top-list"
	IDRecentList         = "recent-list"
	IDLastUpdateTime     = "last-update-time"
	IDMapContainer       = "map-container"
	IDRefreshButton      = "refresh-button"
)

// Empty-state messages.
const (
	EmptyTopMessage    = "No registrations yet"
	EmptyRecentMessage = "No recent registrations"
	EmptyMapMessage    = "No country data yet. Scan QR code to register!"
)

// Time layouts for the recent list and the last-update stamp.
const (
	RecentTimeLayout     = "15:04"
	LastUpdateTimeLayout = "15:04:05"
)

// Label placement on the illustrative map.
const (
	labelX       = 400
	labelOffsetY = 50
	labelStepY   = 20
)

var medals = [...]string{"🥇", "🥈", "🥉"}

// Tile is one country cell of the grid view.
type Tile struct {
	Country   string  `json:"country"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"`
	Fill      string  `json:"fill"`
	Tooltip   string  `json:"tooltip"`
}

// MapPath is one drawable country on the illustrative SVG map.
type MapPath struct {
	Country   string  `json:"country"`
	D         string  `json:"d"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"`
	Fill      string  `json:"fill"`
}

// MapLabel is the "Country: count" text row drawn next to the map.
type MapLabel struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Text string `json:"text"`
}

// TopEntry is one row of the top-countries leaderboard.
type TopEntry struct {
	Rank    int    `json:"rank"`
	Medal   string `json:"medal,omitempty"`
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// Label is the country name prefixed with the medal, if any.
func (e TopEntry) Label() string {
	if e.Medal == "" {
		return e.Country
	}
	return e.Medal + " " + e.Country
}

// RecentEntry is one row of the recent-registrations list.
type RecentEntry struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Message string `json:"message,omitempty"`
	Time    string `json:"time"`
}

// ViewModel is everything the dashboard page displays.
type ViewModel struct {
	Total           int           `json:"total"`
	UniqueCountries int           `json:"unique_countries"`
	MaxCount        int           `json:"max_count"`
	Tiles           []Tile        `json:"tiles"`
	Paths           []MapPath     `json:"paths"`
	Labels          []MapLabel    `json:"labels"`
	Top             []TopEntry    `json:"top"`
	Recent          []RecentEntry `json:"recent"`
	LastUpdate      string        `json:"last_update"`
	RefreshSeconds  int           `json:"refresh_seconds"`
}

// EmptyTop reports whether the top list shows its empty-state message.
func (v ViewModel) EmptyTop() bool { return len(v.Top) == 0 }

// EmptyRecent reports whether the recent list shows its empty-state message.
func (v ViewModel) EmptyRecent() bool { return len(v.Recent) == 0 }

// EmptyMap reports whether the grid shows its empty-state message.
func (v ViewModel) EmptyMap() bool { return len(v.Tiles) == 0 }

// Build projects summary onto the dashboard. now is the refresh instant and
// loc the display timezone; a nil loc means UTC.
func Build(summary aggregate.Summary, cat *catalog.Catalog, now time.Time, loc *time.Location, refresh time.Duration) ViewModel {
	if loc == nil {
		loc = time.UTC
	}
	maxCount := summary.Counts.Max()

	vm := ViewModel{
		Total:           summary.Total,
		UniqueCountries: summary.UniqueCountries,
		MaxCount:        maxCount,
		Tiles:           make([]Tile, 0, summary.Counts.Len()),
		Top:             make([]TopEntry, 0, len(summary.Top)),
		Recent:          make([]RecentEntry, 0, len(summary.Recent)),
		LastUpdate:      now.In(loc).Format(LastUpdateTimeLayout),
		RefreshSeconds:  int(refresh / time.Second),
	}

	for _, cc := range summary.Counts.Ranked() {
		intensity := colorscale.Intensity(cc.Count, maxCount)
		vm.Tiles = append(vm.Tiles, Tile{
			Country:   cc.Country,
			Count:     cc.Count,
			Intensity: intensity,
			Fill:      colorscale.Color(intensity).String(),
			Tooltip:   Participants(cc.Count),
		})
	}

	drawable := cat.Drawable()
	vm.Paths = make([]MapPath, 0, len(drawable))
	vm.Labels = make([]MapLabel, 0, len(drawable))
	for i, country := range drawable {
		count := summary.Counts.Of(country.Name)
		intensity := colorscale.Intensity(count, maxCount)
		vm.Paths = append(vm.Paths, MapPath{
			Country:   country.Name,
			D:         country.Path,
			Count:     count,
			Intensity: intensity,
			Fill:      colorscale.Color(intensity).String(),
		})
		vm.Labels = append(vm.Labels, MapLabel{
			X:    labelX,
			Y:    i*labelStepY + labelOffsetY,
			Text: fmt.Sprintf("%s: %d", country.Name, count),
		})
	}

	for i, cc := range summary.Top {
		entry := TopEntry{Rank: i + 1, Country: cc.Country, Count: cc.Count}
		if i < len(medals) {
			entry.Medal = medals[i]
		}
		vm.Top = append(vm.Top, entry)
	}

	for _, reg := range summary.Recent {
		vm.Recent = append(vm.Recent, RecentEntry{
			ID:      reg.ID,
			Name:    reg.Name,
			Country: reg.Country,
			Message: reg.Message,
			Time:    reg.Timestamp.In(loc).Format(RecentTimeLayout),
		})
	}
	return vm
}

// Participants renders "1 participant" or "N participants".
func Participants(n int) string {
	if n == 1 {
		return "1 participant"
	}
	return fmt.Sprintf("%d participants", n)
}
