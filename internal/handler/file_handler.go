package handler

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

type signedFileOpener interface {
	OpenSigned(token string) (*os.File, string, error)
}

// FileHandler serves attachments written by local storage.
type FileHandler struct {
	files signedFileOpener
}

// NewFileHandler builds a file handler.
func NewFileHandler(files signedFileOpener) *FileHandler {
	return &FileHandler{files: files}
}

// Download godoc
// @Summary Download a signed attachment
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, key, err := h.files.OpenSigned(c.Param("token"))
	if err != nil {
		// expired, forged and missing files look the same to callers
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, http.StatusNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read file"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
