package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/aggregate"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var generatedAt = time.Date(2024, 1, 15, 11, 5, 9, 0, time.UTC)

type fakeSource struct {
	mu    sync.Mutex
	regs  []models.Registration
	err   error
	calls int
}

func (f *fakeSource) Snapshot(context.Context) (service.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return service.Snapshot{}, f.err
	}
	return service.Snapshot{
		Summary:     aggregate.Summarize(f.regs, aggregate.DefaultTopN, aggregate.DefaultRecentN),
		GeneratedAt: generatedAt,
	}, nil
}

func (f *fakeSource) add(country string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = append(f.regs, models.Registration{
		ID:        int64(len(f.regs) + 1),
		Country:   country,
		Name:      models.DefaultName,
		Timestamp: generatedAt,
	})
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	r, err := New(&fakeSource{}, WithInterval(0), WithLocation(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, r.Interval())
}

func TestCurrentBeforeFirstRefresh(t *testing.T) {
	r, err := New(&fakeSource{})
	require.NoError(t, err)

	_, ok := r.Current()
	assert.False(t, ok)
}

func TestRefreshCachesView(t *testing.T) {
	source := &fakeSource{}
	source.add("Nigeria")
	source.add("Nigeria")
	source.add("Ghana")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	r, err := New(source, WithMetrics(m), WithInterval(30*time.Second))
	require.NoError(t, err)

	vm, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, vm.Total)
	assert.Equal(t, 2, vm.UniqueCountries)
	assert.Equal(t, "11:05:09", vm.LastUpdate)
	assert.Equal(t, 30, vm.RefreshSeconds)

	cached, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, vm, cached)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoredRegistrations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UniqueCountries))
}

func TestRefreshFailureKeepsPreviousView(t *testing.T) {
	source := &fakeSource{}
	source.add("Kenya")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r, err := New(source, WithMetrics(m))
	require.NoError(t, err)

	_, err = r.Refresh(context.Background())
	require.NoError(t, err)

	source.setErr(errors.New("store offline"))
	source.add("Egypt")
	_, err = r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")

	cached, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, 1, cached.Total)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("error")))
}

func TestTriggerNeverBlocks(t *testing.T) {
	r, err := New(&fakeSource{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			r.Trigger()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked without a running loop")
	}
	assert.Len(t, r.trigger, 1, "pending triggers are coalesced")
}

func TestRunRefreshesOnStartAndTrigger(t *testing.T) {
	source := &fakeSource{}
	r, err := New(source, WithInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := r.Current()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	source.add("Rwanda")
	r.Trigger()
	require.Eventually(t, func() bool {
		vm, _ := r.Current()
		return vm.Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunOnSchedule(t *testing.T) {
	source := &fakeSource{}
	r, err := New(source, WithInterval(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return source.callCount() >= 2
	}, 4*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRunRejectsSecondLoop(t *testing.T) {
	r, err := New(&fakeSource{}, WithInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := r.Current()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, r.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-errCh)
}
