package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch projects")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to fetch project")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if !bindJSON(c, &req) {
		return
	}

	in := domain.CreateInput{Name: req.Name, Files: req.Files}
	if req.Metadata != nil {
		in.Metadata = *req.Metadata
	}

	p, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), domain.UpdateInput{
		Name:     req.Name,
		Files:    req.Files,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.fail(c, err, "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Failed to delete project")
		return
	}
	c.JSON(http.StatusOK, messageResp{Message: "Project deleted successfully"})
}

func (h *Handler) saveFiles(c *gin.Context) {
	var req struct {
		Files json.RawMessage `json:"files"`
	}
	if !bindJSON(c, &req) {
		return
	}

	// files must be an object of strings; null, arrays and scalars are rejected
	var files map[string]string
	if len(req.Files) == 0 || json.Unmarshal(req.Files, &files) != nil || files == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Files data is required"})
		return
	}

	p, err := h.svc.SaveFiles(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		h.fail(c, err, "Failed to save files")
		return
	}
	c.JSON(http.StatusOK, messageResp{Message: "Files saved successfully", Project: p})
}

func (h *Handler) preview(c *gin.Context) {
	b, err := h.svc.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to build preview")
		return
	}
	c.JSON(http.StatusOK, b)
}

// fail maps service errors onto status codes. Storage faults were already
// logged by the service; only the generic message reaches the client.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

// bindJSON decodes the body into dst. An empty body decodes as {}.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request entity too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	return false
}
