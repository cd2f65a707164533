package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/civic-map/internal/auth"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/scene"
	"github.com/jengzang/civic-map/internal/service"
	"github.com/jengzang/civic-map/pkg/response"
)

//go:embed templates/*.html
var templates embed.FS

// PageConfig configures the map page
type PageConfig struct {
	Title   string
	Theme   mapview.Theme
	Assets  scene.Assets
	APIBase string
	Poll    time.Duration
}

type pageBoot struct {
	APIBase string `json:"apiBase"`
	PollMs  int64  `json:"pollMs"`
}

type pageData struct {
	Title  string
	Theme  string
	Assets scene.Assets
	Boot   pageBoot
}

// MapHandler handles the map page and map session endpoints
type MapHandler struct {
	maps *service.MapService
	page *template.Template
	cfg  PageConfig
}

// NewMapHandler creates a new map handler
func NewMapHandler(maps *service.MapService, cfg PageConfig) (*MapHandler, error) {
	page, err := template.ParseFS(templates, "templates/map.html")
	if err != nil {
		return nil, err
	}
	if cfg.Title == "" {
		cfg.Title = "Civic reports"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "/api/v1"
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	return &MapHandler{maps: maps, page: page, cfg: cfg}, nil
}

// Page handles GET /map
func (h *MapHandler) Page(c *gin.Context) {
	data := pageData{
		Title:  h.cfg.Title,
		Theme:  string(h.cfg.Theme),
		Assets: h.cfg.Assets,
		Boot:   pageBoot{APIBase: h.cfg.APIBase, PollMs: h.cfg.Poll.Milliseconds()},
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.page.Execute(c.Writer, data); err != nil {
		_ = c.Error(err)
	}
}

// CreateSession handles POST /api/v1/map/sessions
func (h *MapHandler) CreateSession(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid session request", err)
		return
	}
	req.UserAgent = c.Request.UserAgent()

	info, err := h.maps.CreateSession(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Failed to create map session", err)
		return
	}
	response.Created(c, info)
}

// Scene handles GET /api/v1/map/sessions/:id/scene
func (h *MapHandler) Scene(c *gin.Context) {
	sc, err := h.maps.Scene(c.Param("id"), bearer(c))
	if err != nil {
		respondError(c, "Failed to get map scene", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.Success(c, sc)
}

// Event handles POST /api/v1/map/sessions/:id/events
func (h *MapHandler) Event(c *gin.Context) {
	var ev service.ViewportEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, "Invalid viewport event", err)
		return
	}
	if err := h.maps.ApplyEvent(c.Param("id"), bearer(c), ev); err != nil {
		respondError(c, "Failed to apply viewport event", err)
		return
	}
	response.Success(c, gin.H{"accepted": ev.Type})
}

// CloseSession handles DELETE /api/v1/map/sessions/:id
func (h *MapHandler) CloseSession(c *gin.Context) {
	if err := h.maps.CloseSession(c.Param("id"), bearer(c)); err != nil {
		respondError(c, "Failed to close map session", err)
		return
	}
	response.Success(c, gin.H{"closed": c.Param("id")})
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

func respondError(c *gin.Context, message string, err error) {
	response.Error(c, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMapNotReady):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownEvent), errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, mapview.ErrNotBrowser):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, mapview.ErrLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
