package service

import (
	"context"
	"time"

	"github.com/jengzang/civic-map/internal/auth"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/scene"
	"github.com/stretchr/testify/mock"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context) ([]models.Report, error) {
	args := m.Called(ctx)
	reports, _ := args.Get(0).([]models.Report)
	return reports, args.Error(1)
}

func report(id string, lat, lng float64, upvotes int) models.Report {
	return models.Report{
		ID:          id,
		Category:    "pothole",
		Description: "report " + id,
		Location:    &models.Location{Lat: lat, Lng: lng},
		UpvoteCount: upvotes,
	}
}

func fastOptions() mapview.Options {
	opts := mapview.DefaultOptions()
	opts.ContainerPollInterval = time.Millisecond
	opts.HeatInitDelay = time.Millisecond
	opts.HeatRefreshDelay = time.Millisecond
	opts.ResizeSettleDelay = time.Millisecond
	opts.ZoomSettleDelay = time.Millisecond
	opts.TouchReleaseDelay = time.Millisecond
	return opts
}

func newMapService(src *mockSource, cfg MapConfig) (*MapService, *ReportService) {
	reports := NewReportService(src, "test", nil, nil, logging.NewNop())
	loader := mapview.NewLoader(scene.LoadFunc(scene.DefaultAssets(), nil), logging.NewNop())
	svc := NewMapService(cfg, loader, fastOptions(), reports, auth.NewSigner("test-secret", time.Hour), logging.NewNop())
	return svc, reports
}
