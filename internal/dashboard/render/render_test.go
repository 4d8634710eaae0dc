package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/view"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/aggregate"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/catalog"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

var now = time.Date(2024, 1, 15, 11, 5, 9, 0, time.UTC)

func buildView(regs []models.Registration) view.ViewModel {
	summary := aggregate.Summarize(regs, aggregate.DefaultTopN, aggregate.DefaultRecentN)
	return view.Build(summary, catalog.Africa(), now, time.UTC, 10*time.Second)
}

func renderDashboard(t *testing.T, vm view.ViewModel) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, MustNew().Dashboard(&buf, vm))
	return buf.String()
}

func TestDashboardHasStableIDs(t *testing.T) {
	page := renderDashboard(t, buildView(nil))

	for _, id := range []string{
		view.IDTotalCount,
		view.IDUniqueCountryCount,
		view.IDTopList,
		view.IDRecentList,
		view.IDLastUpdateTime,
		view.IDMapContainer,
		view.IDRefreshButton,
	} {
		assert.Contains(t, page, `id="`+id+`"`)
	}
	assert.Contains(t, page, `action="/refresh"`)
	assert.Contains(t, page, `<meta http-equiv="refresh" content="10">`)
}

func TestDashboardEmptyState(t *testing.T) {
	page := renderDashboard(t, buildView(nil))

	assert.Contains(t, page, view.EmptyTopMessage)
	assert.Contains(t, page, view.EmptyRecentMessage)
	assert.Contains(t, page, view.EmptyMapMessage)
	assert.Contains(t, page, `<strong id="total-count">0</strong>`)
	assert.Contains(t, page, "11:05:09")
}

func TestDashboardWithRegistrations(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	page := renderDashboard(t, buildView([]models.Registration{
		{ID: 1, Country: "Nigeria", Name: "John", Timestamp: at},
		{ID: 2, Country: "Nigeria", Name: "Mike", Timestamp: at.Add(time.Minute)},
		{ID: 3, Country: "Ghana", Name: "Sarah", Timestamp: at.Add(2 * time.Minute)},
	}))

	assert.Contains(t, page, `<strong id="total-count">3</strong>`)
	assert.Contains(t, page, `<strong id="unique-country-count">2</strong>`)
	assert.Contains(t, page, "🥇 Nigeria")
	assert.Contains(t, page, "🥈 Ghana")
	assert.Contains(t, page, "10:32")
	assert.Contains(t, page, "background: rgb(27, 94, 32)")
	assert.Contains(t, page, `fill="rgb(27, 94, 32)"`)
	assert.Contains(t, page, "Nigeria: 2")
	assert.NotContains(t, page, "ZgotmplZ")
	assert.NotContains(t, page, view.EmptyTopMessage)
}

func TestDashboardEscapesUserInput(t *testing.T) {
	page := renderDashboard(t, buildView([]models.Registration{
		{ID: 1, Country: "Kenya", Name: "<script>alert(1)</script>", Timestamp: now},
	}))

	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestDashboardWithoutAutoRefresh(t *testing.T) {
	vm := buildView(nil)
	vm.RefreshSeconds = 0
	page := renderDashboard(t, vm)
	assert.NotContains(t, page, `http-equiv="refresh"`)
}

func TestRegisterForm(t *testing.T) {
	var buf bytes.Buffer
	err := MustNew().RegisterForm(&buf, Form{
		Country:   "Atlantis",
		Name:      "Nemo",
		Error:     `unknown country "Atlantis"`,
		Countries: catalog.Africa().Names(),
	})
	require.NoError(t, err)
	page := buf.String()

	assert.Contains(t, page, `action="/register"`)
	assert.Contains(t, page, `value="Atlantis"`)
	assert.Contains(t, page, `<option value="Nigeria">`)
	assert.Contains(t, page, `role="alert"`)
	assert.Contains(t, page, `maxlength="500"`)
	assert.Equal(t, catalog.Africa().Len(), strings.Count(page, "<option "))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestDashboardWriteFailure(t *testing.T) {
	err := MustNew().Dashboard(failingWriter{}, buildView(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}
