package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/artifact"
	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/console"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/preview"
	"github.com/goliatone/go-formembed/pkg/style"
)

var (
	errPresetNotFound = errors.New("server: style preset not found")
	errMalformedStyle = errors.New("server: malformed style")
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/preview/:handle", s.servePreview)
	r.HEAD("/preview/:handle", s.servePreview)

	api := r.Group("/api")
	{
		api.GET("/forms", s.listForms)
		api.GET("/forms/:id", s.getForm)
		api.GET("/presets", s.listPresets)

		api.POST("/views", s.openView)
		api.GET("/views/:view", s.getView)
		api.PUT("/views/:view/selection", s.selectForm)
		api.DELETE("/views/:view/selection", s.deselectForm)
		api.PUT("/views/:view/style", s.setStyle)
		api.DELETE("/views/:view", s.closeView)

		api.GET("/builder", s.builderStatus)
		api.POST("/builder/mount", s.mountBuilder)
		api.POST("/builder/save", s.saveBuilder)
		api.POST("/builder/clear", s.clearBuilder)
		api.DELETE("/builder", s.detachBuilder)
	}

	if s.deps.Bridge != nil {
		s.deps.Bridge.Register(r, BuilderPrefix)
	}
}

type formSummary struct {
	form.Record
	Components int `json:"components"`
}

func summarize(record form.Record) formSummary {
	return formSummary{Record: record, Components: record.Schema.ComponentCount()}
}

func (s *Server) listForms(c *gin.Context) {
	records, err := s.deps.Catalog.ListForms(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]formSummary, 0, len(records))
	for _, record := range records {
		out = append(out, summarize(record))
	}
	c.JSON(http.StatusOK, gin.H{"forms": out})
}

func (s *Server) getForm(c *gin.Context) {
	record, err := s.deps.Catalog.GetForm(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(record))
}

func (s *Server) listPresets(c *gin.Context) {
	presets := s.deps.Presets
	if presets == nil {
		presets = style.Presets{}
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets, "names": presets.Names()})
}

// styleRequest names a preset and/or inline style fields. Style is decoded
// over the base configuration so omitted fields keep their current values.
type styleRequest struct {
	Preset string          `json:"preset"`
	Style  json.RawMessage `json:"style"`
}

// resolveStyle starts from base, applies the preset, then overlays the inline
// style fields that were sent.
func (s *Server) resolveStyle(req styleRequest, base style.Configuration) (style.Configuration, error) {
	cfg := base
	if name := strings.TrimSpace(req.Preset); name != "" {
		preset, ok := s.deps.Presets.Lookup(name)
		if !ok {
			return style.Configuration{}, errPresetNotFound
		}
		cfg = preset
	}
	if raw := bytes.TrimSpace(req.Style); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return style.Configuration{}, fmt.Errorf("%w: %v", errMalformedStyle, err)
		}
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return style.Configuration{}, err
	}
	return cfg, nil
}

func (s *Server) openView(c *gin.Context) {
	var req styleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cfg, err := s.resolveStyle(req, style.Default())
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := s.views.Open(console.WithStyle(cfg))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": view.ID(), "style": view.Style()})
}

func (s *Server) view(c *gin.Context) (*console.View, bool) {
	view, err := s.views.Get(c.Param("view"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return view, true
}

func (s *Server) getView(c *gin.Context) {
	view, ok := s.view(c)
	if !ok {
		return
	}
	result, err := view.Result()
	if err != nil && !errors.Is(err, console.ErrNothingSelected) {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(view.ID(), result, err == nil))
}

type selectionRequest struct {
	FormID string `json:"formId" binding:"required"`
}

func (s *Server) selectForm(c *gin.Context) {
	view, ok := s.view(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := s.deps.Catalog.GetForm(c.Request.Context(), req.FormID)
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := view.Select(c.Request.Context(), record)
	s.metrics.observeArtifacts(err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(view.ID(), result, true))
}

func (s *Server) deselectForm(c *gin.Context) {
	view, ok := s.view(c)
	if !ok {
		return
	}
	view.Deselect(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s *Server) setStyle(c *gin.Context) {
	view, ok := s.view(c)
	if !ok {
		return
	}
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.resolveStyle(req, view.Style())
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := view.SetStyle(c.Request.Context(), cfg)
	if err != nil || !result.Preview.IsZero() {
		s.metrics.observeArtifacts(err)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(view.ID(), result, !result.Preview.IsZero()))
}

func (s *Server) closeView(c *gin.Context) {
	if err := s.views.Close(c.Request.Context(), c.Param("view")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func viewResponse(id string, result console.Result, selected bool) gin.H {
	out := gin.H{"id": id, "style": result.Style}
	if selected {
		out["form"] = result.Record.ID
		out["artifacts"] = result.Artifacts
		out["preview"] = result.Preview
	}
	return out
}

func (s *Server) servePreview(c *gin.Context) {
	preview.Serve(c.Writer, c.Request, s.deps.Previews, c.Param("handle"))
}

func (s *Server) builderStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Session.Status())
}

type mountRequest struct {
	FormID string `json:"formId"`
}

func (s *Server) mountBuilder(c *gin.Context) {
	var req mountRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var record *form.Record
	if id := strings.TrimSpace(req.FormID); id != "" {
		found, err := s.deps.Catalog.GetForm(c.Request.Context(), id)
		if err != nil {
			s.fail(c, err)
			return
		}
		record = &found
	}
	if err := s.deps.Session.Mount(c.Request.Context(), record); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.deps.Session.Status())
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) saveBuilder(c *gin.Context) {
	var req saveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var opts []builder.SaveOption
	if name := strings.TrimSpace(req.Name); name != "" {
		opts = append(opts, builder.SaveWithName(name))
	}
	saved, err := s.deps.Session.Save(c.Request.Context(), opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(saved))
}

func (s *Server) clearBuilder(c *gin.Context) {
	if err := s.deps.Session.Clear(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Session.Status())
}

func (s *Server) detachBuilder(c *gin.Context) {
	s.deps.Session.Detach()
	c.JSON(http.StatusOK, s.deps.Session.Status())
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errMalformedStyle):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, console.ErrViewNotFound),
		errors.Is(err, errPresetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicate),
		errors.Is(err, builder.ErrEditorNotAttached),
		errors.Is(err, console.ErrViewClosed):
		status = http.StatusConflict
	case errors.Is(err, style.ErrConfigurationInvalid),
		errors.Is(err, form.ErrNameRequired),
		errors.Is(err, form.ErrInvalidRecord),
		errors.Is(err, artifact.ErrIncompleteRecord):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, builder.ErrEditorAttachFailure):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
