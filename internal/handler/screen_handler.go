package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/middleware"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/internal/service"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/export"
	"github.com/cdrp/console-gateway/pkg/response"
)

const defaultMaxImageBytes = 5 << 20

type screenRegistry interface {
	Dashboard(session models.Session) dto.DashboardResponse
	Open(ctx context.Context, session models.Session, req dto.OpenScreenRequest) (service.ScreenHandle, error)
	Get(session models.Session, id string) (service.ScreenHandle, error)
	Close(session models.Session, id string) error
}

// ScreenExporter renders screen pages to downloadable files.
type ScreenExporter interface {
	Export(ctx context.Context, screen service.ScreenHandle, format export.Format) (*dto.ExportResponse, error)
	Open(token string) (*service.ExportFile, error)
}

// ScreenHandler exposes mounted screens over HTTP.
type ScreenHandler struct {
	registry  screenRegistry
	exports   ScreenExporter
	maxUpload int64
}

// NewScreenHandler constructs the handler. exports may be nil when exports are
// disabled; maxUpload <= 0 selects 5 MB.
func NewScreenHandler(registry screenRegistry, exports ScreenExporter, maxUpload int64) *ScreenHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxImageBytes
	}
	return &ScreenHandler{registry: registry, exports: exports, maxUpload: maxUpload}
}

// screenAction runs against the caller's screen and may fail; the view is
// rendered either way.
type screenAction func(ctx context.Context, session models.Session, screen service.ScreenHandle) error

func (h *ScreenHandler) withScreen(c *gin.Context, action screenAction) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	screen, err := h.registry.Get(session, c.Param("screenId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.render(c, session, screen, action(c.Request.Context(), session, screen))
}

func (h *ScreenHandler) render(c *gin.Context, session models.Session, screen service.ScreenHandle, err error) {
	middleware.SetMeta(c, "screen_id", screen.ID())
	view := screen.Snapshot(session)
	response.View(c, view, &view.Pagination, err, middleware.ExtractMeta(c))
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
	}
	return nil
}

// Dashboard godoc
// @Summary Screens available to the caller
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *ScreenHandler) Dashboard(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.registry.Dashboard(session), nil, middleware.ExtractMeta(c))
}

// Open godoc
// @Summary Mount a screen and load its first page
// @Tags Screens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.OpenScreenRequest true "Screen"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /screens [post]
func (h *ScreenHandler) Open(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.OpenScreenRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	screen, err := h.registry.Open(c.Request.Context(), session, req)
	if screen == nil {
		response.Error(c, err)
		return
	}
	if err != nil {
		h.render(c, session, screen, err)
		return
	}
	middleware.SetMeta(c, "screen_id", screen.ID())
	view := screen.Snapshot(session)
	response.JSON(c, http.StatusCreated, view, &view.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Current view state of a screen
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /screens/{screenId} [get]
func (h *ScreenHandler) Get(c *gin.Context) {
	h.withScreen(c, func(context.Context, models.Session, service.ScreenHandle) error { return nil })
}

// Close godoc
// @Summary Unmount a screen
// @Tags Screens
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 204
// @Router /screens/{screenId} [delete]
func (h *ScreenHandler) Close(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.registry.Close(session, c.Param("screenId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Refresh godoc
// @Summary Re-fetch the current page
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/refresh [post]
func (h *ScreenHandler) Refresh(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.Refresh(ctx, session)
	})
}

// Search godoc
// @Summary Submit a search term
// @Tags Screens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param payload body dto.SearchRequest true "Search"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/search [post]
func (h *ScreenHandler) Search(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		var req dto.SearchRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		return screen.Search(ctx, session, req.Term)
	})
}

// Filter godoc
// @Summary Set or clear the screen filter
// @Tags Screens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param payload body dto.FilterRequest true "Filter"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/filter [post]
func (h *ScreenHandler) Filter(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		var req dto.FilterRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		return screen.Filter(ctx, session, req.Value)
	})
}

// Page godoc
// @Summary Jump to a page
// @Tags Screens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param payload body dto.PageRequest true "Page"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/page [post]
func (h *ScreenHandler) Page(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		var req dto.PageRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		return screen.GoToPage(ctx, session, req.Page)
	})
}

// Next godoc
// @Summary Move to the next page
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/next [post]
func (h *ScreenHandler) Next(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.NextPage(ctx, session)
	})
}

// Previous godoc
// @Summary Move to the previous page
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/previous [post]
func (h *ScreenHandler) Previous(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.PreviousPage(ctx, session)
	})
}

// Mutate godoc
// @Summary Apply a row operation
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param entityId path string true "Entity ID"
// @Param operation path string true "verify, activate, deactivate or delete"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /screens/{screenId}/rows/{entityId}/{operation} [post]
func (h *ScreenHandler) Mutate(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		op, ok := models.ParseRowOperation(c.Param("operation"))
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown operation %q", c.Param("operation")))
		}
		return screen.Mutate(ctx, session, c.Param("entityId"), op)
	})
}

// View godoc
// @Summary Open the detail view of a row
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/view/{entityId} [post]
func (h *ScreenHandler) View(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.View(ctx, session, c.Param("entityId"))
	})
}

// Back godoc
// @Summary Return from the detail view to the list
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/back [post]
func (h *ScreenHandler) Back(c *gin.Context) {
	h.withScreen(c, func(_ context.Context, _ models.Session, screen service.ScreenHandle) error {
		return screen.Back()
	})
}

// Edit godoc
// @Summary Start editing the selected record
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/edit [post]
func (h *ScreenHandler) Edit(c *gin.Context) {
	h.withScreen(c, func(_ context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.Edit(session)
	})
}

// Create godoc
// @Summary Open an empty create form
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/create [post]
func (h *ScreenHandler) Create(c *gin.Context) {
	h.withScreen(c, func(_ context.Context, session models.Session, screen service.ScreenHandle) error {
		return screen.Create(session)
	})
}

// Cancel godoc
// @Summary Discard the form draft
// @Tags Screens
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Success 200 {object} response.Envelope
// @Router /screens/{screenId}/cancel [post]
func (h *ScreenHandler) Cancel(c *gin.Context) {
	h.withScreen(c, func(_ context.Context, _ models.Session, screen service.ScreenHandle) error {
		return screen.Cancel()
	})
}

// UpdateDraft godoc
// @Summary Change form fields
// @Tags Screens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param payload body object true "Field values keyed by field name"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /screens/{screenId}/draft [patch]
func (h *ScreenHandler) UpdateDraft(c *gin.Context) {
	h.withScreen(c, func(_ context.Context, _ models.Session, screen service.ScreenHandle) error {
		var fields map[string]json.RawMessage
		if err := bindJSON(c, &fields); err != nil {
			return err
		}
		return screen.UpdateDraft(fields)
	})
}

// Save godoc
// @Summary Validate and submit the form
// @Description Accepts an optional JSON object of final field values, or multipart form data with an `image` file.
// @Tags Screens
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param image formData file false "Image"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /screens/{screenId}/save [post]
func (h *ScreenHandler) Save(c *gin.Context) {
	h.withScreen(c, func(ctx context.Context, session models.Session, screen service.ScreenHandle) error {
		if err := h.applySaveBody(c, screen); err != nil {
			return err
		}
		return screen.Save(ctx, session)
	})
}

func (h *ScreenHandler) applySaveBody(c *gin.Context, screen service.ScreenHandle) error {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.applyMultipart(c, screen)
	}
	if c.Request.ContentLength == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := bindJSON(c, &fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	return screen.UpdateDraft(fields)
}

func (h *ScreenHandler) applyMultipart(c *gin.Context, screen service.ScreenHandle) error {
	form, err := c.MultipartForm()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}

	fields := make(map[string]string, len(form.Value))
	for name, values := range form.Value {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	if len(fields) > 0 {
		if err := screen.UpdateDraftForm(fields); err != nil {
			return err
		}
	}

	files := form.File["image"]
	if len(files) == 0 {
		return nil
	}
	header := files[0]
	file, err := header.Open()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable image")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable image")
	}
	if int64(len(data)) > h.maxUpload {
		return appErrors.WithFields(map[string]string{"image": fmt.Sprintf("Image must be at most %d KB", h.maxUpload>>10)})
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return appErrors.WithFields(map[string]string{"image": "Image must be an image file"})
	}
	return screen.AttachImage(&backend.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
}

// Export godoc
// @Summary Export the current page
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param screenId path string true "Screen ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /screens/{screenId}/export [post]
func (h *ScreenHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(strings.ToLower(c.Query("format")))
	if err != nil {
		response.Error(c, appErrors.WithFields(map[string]string{"format": "Format must be one of: csv, pdf"}))
		return
	}
	screen, err := h.registry.Get(session, c.Param("screenId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.Export(c.Request.Context(), screen, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "screen_id", screen.ID())
	response.JSON(c, http.StatusCreated, result, nil, middleware.ExtractMeta(c))
}

// Download godoc
// @Summary Download an export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ScreenHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	file, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close()

	info, err := file.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), file.ContentType, file.File, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.Filename),
		"Cache-Control":       "no-store",
	})
}
