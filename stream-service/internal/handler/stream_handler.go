package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/middleware"
	"github.com/JimmyPiedrahita/netflis/pkg/response"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/origin"
	"github.com/JimmyPiedrahita/netflis/stream-service/internal/service"
)

// StreamHandler exposes origin objects as seekable HTTP resources.
type StreamHandler struct {
	svc *service.StreamService
}

func NewStreamHandler(svc *service.StreamService) *StreamHandler {
	return &StreamHandler{svc: svc}
}

// RegisterRoutes registers the streaming routes.
func (h *StreamHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/stream", cors(), h.handleMissingID)

	g := r.Group("/stream", cors(), middleware.ExtractCredential())
	g.GET("/:objectId", h.handleStream)
	g.HEAD("/:objectId", h.handleHead)
	g.OPTIONS("/:objectId", h.handlePreflight)
}

func (h *StreamHandler) handleMissingID(c *gin.Context) {
	response.BadRequest(c, "object id is required")
}

func (h *StreamHandler) handlePreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) handleStream(c *gin.Context) {
	objectID, credential, ok := h.inputs(c)
	if !ok {
		return
	}

	res, err := h.svc.ServeRange(c.Request.Context(), c.Writer, objectID, credential, c.GetHeader("Range"))
	if res.UpstreamCode != 0 {
		c.Set(pkglog.FieldUpstreamStatus, res.UpstreamCode)
	}
	if err != nil {
		h.fail(c, objectID, err)
	}
}

func (h *StreamHandler) handleHead(c *gin.Context) {
	objectID, credential, ok := h.inputs(c)
	if !ok {
		return
	}
	if _, err := h.svc.Head(c.Request.Context(), c.Writer, objectID, credential); err != nil {
		h.fail(c, objectID, err)
	}
}

// inputs validates the object id and credential before any origin call.
func (h *StreamHandler) inputs(c *gin.Context) (objectID, credential string, ok bool) {
	objectID = normalizeObjectID(c.Param("objectId"))
	if objectID == "" {
		response.BadRequest(c, "object id is required")
		return "", "", false
	}
	c.Set(pkglog.FieldObjectID, objectID)

	credential = middleware.GetCredential(c)
	if credential == "" {
		response.Unauthorized(c, "missing access token")
		return "", "", false
	}
	return objectID, credential, true
}

// fail is the single place service errors become responses.
func (h *StreamHandler) fail(c *gin.Context, objectID string, err error) {
	l := pkglog.Ctx(c.Request.Context())

	var pipeErr *service.PipeError
	if errors.As(err, &pipeErr) {
		c.Abort()
		if pipeErr.Aborted {
			l.Debug().Str(pkglog.FieldObjectID, objectID).Int64(pkglog.FieldBytes, pipeErr.Written).Msg("client closed stream")
			return
		}
		l.Warn().Err(pipeErr.Err).Str(pkglog.FieldObjectID, objectID).Int64(pkglog.FieldBytes, pipeErr.Written).Msg("stream interrupted")
		return
	}

	if errors.Is(err, context.Canceled) {
		c.Abort()
		l.Debug().Str(pkglog.FieldObjectID, objectID).Msg("client went away before streaming began")
		return
	}

	var rangeErr *service.RangeError
	if errors.As(err, &rangeErr) {
		c.Header("Content-Range", "bytes */"+strconv.FormatInt(rangeErr.Total, 10))
		response.RangeNotSatisfiable(c, "requested range is beyond the end of the object")
		return
	}

	var statusErr *origin.StatusError
	if errors.As(err, &statusErr) {
		c.Set(pkglog.FieldUpstreamStatus, statusErr.StatusCode)
		l.Info().Str(pkglog.FieldObjectID, objectID).Int(pkglog.FieldUpstreamStatus, statusErr.StatusCode).Msg("origin refused request")
		response.Status(c, statusErr.StatusCode, "origin refused the request")
		return
	}

	l.Error().Err(err).Str(pkglog.FieldObjectID, objectID).Msg("failed to stream object")
	response.InternalError(c, "failed to stream object")
}

// normalizeObjectID drops the ".mp4" some players append to sniff the type.
func normalizeObjectID(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), ".mp4")
}
