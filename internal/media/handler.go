package media

import (
	"errors"
	"io"
	"net/http"

	"community-api/internal/httpx"
	"community-api/internal/observability"

	"github.com/google/uuid"
)

const (
	maxUploadSizeBytes = 10 << 20
	multipartOverhead  = 1 << 20
)

const (
	codeInvalidFile        = "invalid_file"
	codeFileTooLarge       = "file_too_large"
	codeInvalidFileType    = "invalid_file_type"
	codeFileUploadFailed   = "file_upload_failed"
	codeStorageUnavailable = "storage_unavailable"
	codeFileUploadSuccess  = "file_upload_success"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type UploadHandler struct {
	store  Store
	logger *observability.Logger
	newID  func() string
}

func NewUploadHandler(store Store, logger *observability.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger, newID: uuid.NewString}
}

type uploadResult struct {
	FilePath string `json:"filePath"`
}

func (h *UploadHandler) PostAttachment(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "postFile", DirPost)
}

func (h *UploadHandler) ProfileImage(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "profileImage", DirProfile)
}

func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request, field, dir string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSizeBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, r, h.logger, httpx.Validation(codeFileTooLarge))
			return
		}
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidFile))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile(field)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidFile))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidFile))
		return
	}
	if len(data) == 0 {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidFile))
		return
	}
	if len(data) > maxUploadSizeBytes {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeFileTooLarge))
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidFileType))
		return
	}

	filePath, err := h.store.Save(r.Context(), dir, h.newID()+ext, data, contentType)
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			httpx.WriteError(w, r, h.logger, httpx.Unavailable(codeStorageUnavailable, err))
			return
		}
		httpx.WriteError(w, r, h.logger, httpx.Upstream(codeFileUploadFailed, err))
		return
	}

	h.logger.Info("file_uploaded", map[string]any{"dir": dir, "path": filePath, "bytes": len(data)})
	httpx.WriteSuccess(w, http.StatusCreated, codeFileUploadSuccess, uploadResult{FilePath: filePath})
}
