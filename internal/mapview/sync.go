package mapview

import (
	"github.com/jengzang/civic-map/internal/logging"
)

// syncMarkers rebuilds the marker overlay from the current report list.
// The overlay is cleared and repopulated rather than diffed, which keeps
// repeated syncs of the same list idempotent.
func (s *Session) syncMarkers() {
	if s.markers == nil || s.lib == nil {
		return
	}
	if err := try(s.markers.ClearLayers); err != nil {
		s.overlayFailure("clear markers", err)
		return
	}

	placed := 0
	for _, r := range s.reports {
		if !ValidLocation(r.Location) {
			continue
		}
		popup, err := PopupHTML(r)
		if err != nil {
			s.log.Warn("popup render failed", logging.String("report", r.ID), logging.Err(err))
			continue
		}
		err = try(func() error {
			mk, err := s.lib.NewMarker(LatLng{Lat: r.Location.Lat, Lng: r.Location.Lng}, s.icon, popup)
			if err != nil {
				return err
			}
			return s.markers.AddLayer(mk)
		})
		if err != nil {
			s.overlayFailure("marker", err)
			continue
		}
		placed++
	}
	s.markerCount = placed
	s.obs.MarkersSynced(placed)
}

// applyHeat pushes the current heat points to the overlay. It is a silent
// no-op while the container has no size or the overlay is detached.
func (s *Session) applyHeat() {
	if s.heat == nil || !s.sized() || !s.heatAttached() {
		return
	}
	points := HeatPoints(s.reports)
	if err := try(func() error { return s.heat.SetLatLngs(points) }); err != nil {
		s.overlayFailure("heat points", err)
		return
	}
	s.obs.HeatApplied(len(points))
}

// onMapReady defers heat overlay construction until the container layout
// has settled after the map's ready signal.
func (s *Session) onMapReady() {
	s.schedule(s.opts.HeatInitDelay, s.createHeat)
}

func (s *Session) createHeat() {
	if s.heat != nil || s.m == nil {
		return
	}
	var points []HeatPoint
	if s.sized() {
		points = HeatPoints(s.reports)
	}
	err := try(func() error {
		h, err := s.lib.NewHeatLayer(points, s.opts.Heat)
		if err != nil {
			return err
		}
		if err := s.m.AddLayer(h); err != nil {
			return err
		}
		s.heat = h
		return nil
	})
	if err != nil {
		// markers keep working without the heat overlay
		s.overlayFailure("heat overlay", err)
		return
	}
	s.obs.HeatApplied(len(points))
}
