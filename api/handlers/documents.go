package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apierrors "github.com/pawpal/petmail/api/errors"
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/repository"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
	"github.com/pawpal/petmail/services/storage"
)

type DocumentsHandler struct {
	storage interfaces.StorageService
	bucket  string
	ttl     time.Duration
	log     logger.Logger
}

func NewDocumentsHandler(storageService interfaces.StorageService, bucket string, ttl time.Duration, log logger.Logger) *DocumentsHandler {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocumentsHandler{storage: storageService, bucket: bucket, ttl: ttl, log: log}
}

// SignedURL returns a time limited download link for a stored document. The
// path must live under the requesting user's folder.
func (h *DocumentsHandler) SignedURL() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DocumentsHandler.SignedURL")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		path := strings.TrimPrefix(strings.TrimSpace(c.Query("path")), "/")
		userID := utils.GetUserIdFromContext(ctx)
		span.LogKV("path", path)

		if path == "" || userID == "" {
			h.respond(c, nil, errors.Wrap(repository.ErrInvalidInput, "path and user_id are required"))
			return
		}
		if !storage.BelongsToUser(path, userID) {
			h.log.Warnf("user %s requested foreign document %s", userID, path)
			h.respond(c, nil, petmailerrors.ErrForeignDocument)
			return
		}

		exists, err := h.storage.Exists(ctx, h.bucket, path)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respond(c, nil, err)
			return
		}
		if !exists {
			h.respond(c, nil, errors.Wrap(repository.ErrNotFound, "document not found"))
			return
		}

		url, err := h.storage.SignedURL(ctx, h.bucket, path, h.ttl)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respond(c, nil, err)
			return
		}

		h.respond(c, &dto.SignedURLResponse{URL: url, ExpiresIn: int64(h.ttl.Seconds())}, nil)
	}
}

func (h *DocumentsHandler) respond(c *gin.Context, response *dto.SignedURLResponse, err error) {
	if err != nil {
		code, body := apierrors.NewErrorResponse(err)
		c.JSON(code, body)
		return
	}
	c.JSON(http.StatusOK, response)
}
