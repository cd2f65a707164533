package scene

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Load(context.Background(), DefaultAssets(), nil)
	require.NoError(t, err)
	return lib
}

func newMap(t *testing.T, lib *Library, vp *Viewport) *Map {
	t.Helper()
	m, err := lib.NewMap(vp, mapview.MapOptions{Center: mapview.LatLng{Lat: 23.0225, Lng: 72.5714}, Zoom: 13})
	require.NoError(t, err)
	return m.(*Map)
}

func TestLoad_RejectsBadAssets(t *testing.T) {
	assets := DefaultAssets()
	assets.HeatJS = "ftp://example.com/heat.js"
	_, err := Load(context.Background(), assets, nil)
	assert.ErrorIs(t, err, ErrInvalidAsset)
}

func TestLoad_ProbesAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing.js" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	}))
	defer srv.Close()

	assets := Assets{LeafletJS: srv.URL + "/leaflet.js", LeafletCSS: srv.URL + "/leaflet.css", HeatJS: srv.URL + "/heat.js"}
	_, err := Load(context.Background(), assets, srv.Client())
	require.NoError(t, err)

	assets.HeatJS = srv.URL + "/missing.js"
	_, err = Load(context.Background(), assets, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestMap_LayersAndSnapshot(t *testing.T) {
	lib := newLibrary(t)
	vp := NewViewport(400, 300, 1280)
	m := newMap(t, lib, vp)
	assert.Same(t, m, vp.Map())

	tiles, err := lib.NewTileLayer(mapview.DefaultOptions().Tiles())
	require.NoError(t, err)
	require.NoError(t, m.AddLayer(tiles))

	group, err := lib.NewLayerGroup()
	require.NoError(t, err)
	require.NoError(t, m.AddLayer(group))
	mk, err := lib.NewMarker(mapview.LatLng{Lat: 23.03, Lng: 72.57}, nil, "<b>pothole</b>")
	require.NoError(t, err)
	require.NoError(t, group.AddLayer(mk))

	heat, err := lib.NewHeatLayer([]mapview.HeatPoint{{Lat: 23.03, Lng: 72.57, Weight: 5}}, mapview.HeatOptions{Radius: 25})
	require.NoError(t, err)
	require.NoError(t, m.AddLayer(heat))

	sc := m.Snapshot()
	assert.Len(t, sc.Tiles, 1)
	require.Len(t, sc.Markers, 1)
	assert.Equal(t, "<b>pothole</b>", sc.Markers[0].Popup)
	require.NotNil(t, sc.Heat)
	assert.Equal(t, 5.0, sc.Heat.Points[0].Weight)
	assert.Equal(t, 13, sc.View.Zoom)

	before := sc.Version
	require.NoError(t, m.RemoveLayer(heat))
	sc = m.Snapshot()
	assert.Nil(t, sc.Heat)
	assert.Greater(t, sc.Version, before)

	raw, err := json.Marshal(sc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"heat"`)
}

func TestMap_AddLayerIsIdempotent(t *testing.T) {
	lib := newLibrary(t)
	m := newMap(t, lib, NewViewport(400, 300, 1280))
	heat, err := lib.NewHeatLayer(nil, mapview.HeatOptions{})
	require.NoError(t, err)

	require.NoError(t, m.AddLayer(heat))
	require.NoError(t, m.AddLayer(heat))
	assert.True(t, m.HasLayer(heat))
	require.NoError(t, m.RemoveLayer(heat))
	assert.False(t, m.HasLayer(heat))
}

type foreignLayer struct{}

func (foreignLayer) LayerID() string { return "foreign" }

func TestMap_RejectsForeignLayers(t *testing.T) {
	lib := newLibrary(t)
	m := newMap(t, lib, NewViewport(400, 300, 1280))
	assert.ErrorIs(t, m.AddLayer(foreignLayer{}), ErrInvalidLayer)

	group, err := lib.NewLayerGroup()
	require.NoError(t, err)
	assert.ErrorIs(t, group.AddLayer(foreignLayer{}), ErrInvalidLayer)
}

func TestMap_WhenReadyAndEvents(t *testing.T) {
	lib := newLibrary(t)
	m := newMap(t, lib, NewViewport(400, 300, 1280))

	var early, late, zooms int
	m.WhenReady(func() { early++ })
	m.On(mapview.EventZoomStart, func() {
		zooms++
		// handlers may re-enter the map
		m.SetZoomGestures(false)
	})

	m.MarkReady()
	m.MarkReady()
	assert.Equal(t, 1, early)

	m.WhenReady(func() { late++ })
	assert.Equal(t, 1, late)

	m.Fire(mapview.EventZoomStart)
	assert.Equal(t, 1, zooms)
	assert.False(t, m.Snapshot().ZoomGestures)
}

func TestMap_RemoveIsTerminal(t *testing.T) {
	lib := newLibrary(t)
	m := newMap(t, lib, NewViewport(400, 300, 1280))
	var fired int
	m.On(mapview.EventZoomEnd, func() { fired++ })

	require.NoError(t, m.Remove())
	require.NoError(t, m.Remove())

	m.Fire(mapview.EventZoomEnd)
	assert.Zero(t, fired)
	assert.ErrorIs(t, m.InvalidateSize(), ErrRemoved)
	heat, _ := lib.NewHeatLayer(nil, mapview.HeatOptions{})
	assert.ErrorIs(t, m.AddLayer(heat), ErrRemoved)
	assert.True(t, m.Snapshot().Removed)
}

func TestMap_InvalidateSizeBumpsEpoch(t *testing.T) {
	lib := newLibrary(t)
	m := newMap(t, lib, NewViewport(400, 300, 1280))
	require.NoError(t, m.InvalidateSize())
	require.NoError(t, m.InvalidateSize())
	assert.Equal(t, 2, m.Snapshot().SizeEpoch)
}

func TestLibrary_Validation(t *testing.T) {
	lib := newLibrary(t)

	_, err := lib.NewTileLayer(mapview.TileOptions{URLTemplate: "https://tiles.example.com/{z}/{x}.png"})
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = lib.NewMarker(mapview.LatLng{Lat: 999, Lng: 72.57}, nil, "")
	assert.ErrorIs(t, err, ErrInvalidMarker)

	_, err = lib.NewIcon(mapview.IconSpec{})
	assert.ErrorIs(t, err, ErrInvalidAsset)

	assert.Nil(t, lib.DefaultIcon())
	require.NoError(t, lib.SetDefaultIcon(mapview.DefaultIconSpec()))
	require.NotNil(t, lib.DefaultIcon())
	assert.Equal(t, mapview.DefaultIconSpec().IconURL, lib.DefaultIcon().IconURL)
}

func TestMarker_CarriesIcon(t *testing.T) {
	lib := newLibrary(t)
	icon, err := lib.NewIcon(mapview.ReportIconSpec())
	require.NoError(t, err)
	mk, err := lib.NewMarker(mapview.LatLng{Lat: 23.03, Lng: 72.57}, icon, "")
	require.NoError(t, err)
	st := mk.(*Marker).state()
	require.NotNil(t, st.Icon)
	assert.Equal(t, mapview.ReportIconSpec().IconURL, st.Icon.IconURL)
}

func TestViewport_Resize(t *testing.T) {
	vp := NewViewport(0, 0, 375)
	var calls int
	disconnect := vp.ObserveResize(func() { calls++ })

	vp.Resize(375, 400, 0)
	vp.Resize(375, 400, 0)
	assert.Equal(t, 1, calls)
	assert.Equal(t, mapview.Size{Width: 375, Height: 400}, vp.Size())
	assert.Equal(t, 375, vp.ViewportWidth())

	disconnect()
	vp.Resize(800, 600, 1024)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1024, vp.ViewportWidth())
}
