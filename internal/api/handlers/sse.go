package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/logger"
)

func prepareStream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// sendEvent writes one server-sent event and flushes it. It reports the
// client going away as an error so the watch loop stops.
func sendEvent(c *gin.Context, name string, data interface{}) error {
	if err := c.Request.Context().Err(); err != nil {
		return err
	}
	c.SSEvent(name, data)
	c.Writer.Flush()
	return nil
}

// finishStream reports the watch result. Before the first event it is a
// normal JSON error; afterwards it becomes an error event.
func finishStream(c *gin.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if !c.Writer.Written() {
		respondError(c, err)
		return
	}
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Log.Warn("stream_failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.SSEvent("error", gin.H{"error": msg})
	c.Writer.Flush()
}
