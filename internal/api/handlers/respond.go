package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/utils"
	"gawangliliw/sellerhub/internal/view"
)

// IAsynqClient is the part of *asynq.Client the handlers use.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// statusFor maps service errors onto HTTP statuses and client-safe messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error("request_failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

// apiErrorFor is the JSON-RPC counterpart of statusFor.
func apiErrorFor(err error) *ApiError {
	_, msg := statusFor(err)
	if msg == "Internal error" {
		logger.Log.Error("api_method_failed", zap.Error(err))
	}
	return NewApiError(msg)
}

// pageParams reads page and size, defaulting size to defaultSize.
func pageParams(c *gin.Context, defaultSize int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.Query("size"))
	if err != nil || size <= 0 {
		size = defaultSize
	}
	return page, view.NormalizeSize(size)
}

func paramID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + strings.ReplaceAll(name, "_", " ")})
		return utils.SixID{}, false
	}
	return id, true
}

// clientID names the browser tab owning a live stream.
func clientID(c *gin.Context) string {
	if id := c.GetHeader("X-Client-ID"); id != "" {
		return id
	}
	return c.Query("client_id")
}
