// Package render draws the dashboard and the registration form as HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/view"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// IDs exposes the stable DOM ids to the templates.
type IDs struct {
	TotalCount         string
	UniqueCountryCount string
	TopList            string
	RecentList         string
	LastUpdateTime     string
	MapContainer       string
	RefreshButton      string
}

// EmptyMessages are shown when a region has nothing to list.
type EmptyMessages struct {
	Top    string
	Recent string
	Map    string
}

var domIDs = IDs{
	TotalCount:         view.IDTotalCount,
	UniqueCountryCount: view.IDUniqueCountryCount,
	TopList:            view.IDTopList,
	RecentList:         view.IDRecentList,
	LastUpdateTime:     view.IDLastUpdateTime,
	MapContainer:       view.IDMapContainer,
	RefreshButton:      view.IDRefreshButton,
}

var emptyMessages = EmptyMessages{
	Top:    view.EmptyTopMessage,
	Recent: view.EmptyRecentMessage,
	Map:    view.EmptyMapMessage,
}

type dashboardData struct {
	View  view.ViewModel
	IDs   IDs
	Empty EmptyMessages
}

// Form is the state of the registration form, echoed back after a
// validation failure.
type Form struct {
	Country   string
	Name      string
	Message   string
	Error     string
	Countries []string
}

type formData struct {
	Form
	MaxCountry int
	MaxName    int
	MaxMessage int
}

// Renderer holds the parsed page templates.
type Renderer struct {
	dashboard *template.Template
	register  *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"participants": view.Participants,
		// Fill values come from colorscale and are always rgb(r, g, b).
		"background": func(fill string) template.CSS { return template.CSS(fill) },
	}
	dashboard, err := template.New("dashboard.html").Funcs(funcs).
		ParseFS(templateFS, "templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	register, err := template.New("register.html").Funcs(funcs).
		ParseFS(templateFS, "templates/layout.html", "templates/register.html")
	if err != nil {
		return nil, fmt.Errorf("parse register template: %w", err)
	}
	return &Renderer{dashboard: dashboard, register: register}, nil
}

// MustNew is New for package-level and test setup.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Dashboard writes the dashboard page for vm. Output is buffered so a
// template failure never leaves a half-written page.
func (r *Renderer) Dashboard(w io.Writer, vm view.ViewModel) error {
	return execute(w, r.dashboard, dashboardData{View: vm, IDs: domIDs, Empty: emptyMessages})
}

// RegisterForm writes the registration form.
func (r *Renderer) RegisterForm(w io.Writer, form Form) error {
	return execute(w, r.register, formData{
		Form:       form,
		MaxCountry: models.MaxCountryLength,
		MaxName:    models.MaxNameLength,
		MaxMessage: models.MaxMessageLength,
	})
}

func execute(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute %s: %w", tmpl.Name(), err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", tmpl.Name(), err)
	}
	return nil
}
