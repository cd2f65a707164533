package mapview

import (
	"testing"
	"time"

	"github.com/jengzang/civic-map/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_ResizeInvalidatesAfterSettle(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(400, 300, 1280))
	h.mount(nil)
	m := h.lib.Map()

	h.container.Resize(800, 600)
	h.clock.Advance(0)
	assert.Zero(t, m.Invalidations())

	h.clock.Advance(DefaultOptions().ResizeSettleDelay)
	assert.Equal(t, 1, m.Invalidations())
}

func TestCoordinator_ZoomDetachesAndReattaches(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(400, 300, 1280))
	h.mount(scenarioReports())
	h.ready()
	m := h.lib.Map()
	heat := h.lib.Heat()
	require.True(t, h.session.HeatAttached())

	m.fire(EventZoomStart)
	h.clock.Advance(0)
	assert.False(t, h.session.HeatAttached())

	// the report list changes while zooming
	h.session.SetReports([]models.Report{report("a", 23.05, 72.6, 0), report("b", 23.06, 72.61, 4)})

	m.fire(EventZoomEnd)
	h.clock.Advance(DefaultOptions().ZoomSettleDelay - time.Millisecond)
	assert.False(t, h.session.HeatAttached())

	h.clock.Advance(time.Millisecond)
	assert.True(t, h.session.HeatAttached())
	assert.Equal(t, []HeatPoint{
		{Lat: 23.05, Lng: 72.6, Weight: 1},
		{Lat: 23.06, Lng: 72.61, Weight: 4},
	}, heat.Points())
}

func TestCoordinator_ZoomEndWithoutZoomStartDoesNotReattach(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(400, 300, 1280))
	h.mount(scenarioReports())
	h.ready()
	m := h.lib.Map()
	heatID := h.lib.Heat().LayerID()
	require.Equal(t, 1, m.AddCalls(heatID))

	m.fire(EventZoomEnd)
	h.clock.Advance(time.Second)

	assert.True(t, h.session.HeatAttached())
	assert.Equal(t, 1, m.AddCalls(heatID))
}

func TestCoordinator_ZoomEndWaitsForSizedContainer(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(400, 300, 1280))
	h.mount(scenarioReports())
	h.ready()
	m := h.lib.Map()

	m.fire(EventZoomStart)
	h.container.Resize(0, 0)
	m.fire(EventZoomEnd)
	h.clock.Advance(time.Second)
	assert.False(t, h.session.HeatAttached())

	h.container.Resize(400, 300)
	m.fire(EventZoomEnd)
	h.clock.Advance(time.Second)
	assert.True(t, h.session.HeatAttached())
}

func TestCoordinator_ZoomBeforeHeatExists(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(400, 300, 1280))
	h.mount(scenarioReports())
	m := h.lib.Map()

	m.fire(EventZoomStart)
	m.fire(EventZoomEnd)
	h.clock.Advance(time.Second)

	assert.Nil(t, h.lib.Heat())
	assert.Equal(t, StateReady, h.session.State())
}

func TestCoordinator_MobileDefaultsAndTouchLock(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(375, 600, 375))
	h.mount(nil)
	m := h.lib.Map()

	assert.True(t, h.session.Mobile())
	assert.Equal(t, DefaultOptions().MobileZoom, m.opts.Zoom)
	assert.False(t, m.opts.ScrollWheelZoom)
	assert.True(t, m.opts.TouchZoom)

	m.fire(EventTouchStart)
	h.clock.Advance(0)
	assert.False(t, m.ZoomGestures())

	m.fire(EventTouchEnd)
	h.clock.Advance(500 * time.Millisecond)
	assert.False(t, m.ZoomGestures())

	// a second touch before release keeps gestures locked
	m.fire(EventTouchStart)
	h.clock.Advance(600 * time.Millisecond)
	assert.False(t, m.ZoomGestures())

	m.fire(EventTouchEnd)
	h.clock.Advance(DefaultOptions().TouchReleaseDelay)
	assert.True(t, m.ZoomGestures())
}

func TestCoordinator_DesktopIgnoresTouch(t *testing.T) {
	h := newHarness(t, &fakeLib{}, newFakeContainer(1024, 768, 1280))
	h.mount(nil)
	m := h.lib.Map()

	m.fire(EventTouchStart)
	h.clock.Advance(0)
	assert.True(t, m.ZoomGestures())
}
