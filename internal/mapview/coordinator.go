package mapview

func (s *Session) bindViewportEvents() {
	s.m.On(EventZoomStart, s.dispatch(s.onZoomStart))
	s.m.On(EventZoomEnd, s.dispatch(s.onZoomEnd))
	if s.mobile {
		s.m.On(EventTouchStart, s.dispatch(s.onTouchStart))
		s.m.On(EventTouchEnd, s.dispatch(s.onTouchEnd))
	}
	s.disconnect = s.container.ObserveResize(s.dispatch(s.onResize))
}

func (s *Session) onResize() {
	s.schedule(s.opts.ResizeSettleDelay, func() {
		if s.m == nil {
			return
		}
		if err := try(s.m.InvalidateSize); err != nil {
			s.overlayFailure("invalidate size", err)
		}
		// catch up on heat applies skipped while the container was collapsed
		s.applyHeat()
	})
}

// The heat canvas misrenders mid-transition, so it is taken off the map
// for the duration of a zoom.
func (s *Session) onZoomStart() {
	if !s.heatAttached() {
		return
	}
	if err := try(func() error { return s.m.RemoveLayer(s.heat) }); err != nil {
		s.overlayFailure("detach heat", err)
		return
	}
	s.heatDetachedForZoom = true
}

func (s *Session) onZoomEnd() {
	s.schedule(s.opts.ZoomSettleDelay, s.reattachHeat)
}

func (s *Session) reattachHeat() {
	if !s.heatDetachedForZoom || s.heat == nil || s.m == nil {
		return
	}
	if !s.sized() {
		return
	}
	if !s.m.HasLayer(s.heat) {
		if err := try(func() error { return s.m.AddLayer(s.heat) }); err != nil {
			s.overlayFailure("reattach heat", err)
			return
		}
	}
	s.heatDetachedForZoom = false
	s.applyHeat()
}

func (s *Session) onTouchStart() {
	s.touchSeq++
	s.m.SetZoomGestures(false)
}

// onTouchEnd re-enables zoom gestures unless another touch began while
// the release was pending.
func (s *Session) onTouchEnd() {
	seq := s.touchSeq
	s.schedule(s.opts.TouchReleaseDelay, func() {
		if s.touchSeq != seq || s.m == nil {
			return
		}
		s.m.SetZoomGestures(true)
	})
}
