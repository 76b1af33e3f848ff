package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Controller struct {
	uc  Notifier
	log *zap.Logger
}

func NewController(uc Notifier, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.L()
	}
	return &Controller{uc: uc, log: log.With(zap.String("component", "api"))}
}

type notifyRequest struct {
	NotificatorID string `json:"notificator_id" binding:"required"`
	Message       string `json:"message" binding:"required"`
}

type notifyResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	NotificatorID string `json:"notificator_id"`
}

func (c *Controller) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *Controller) Notify(ctx *gin.Context) {
	var req notifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, notifyResponse{
			Message:       "invalid request: notificator_id and message are required",
			NotificatorID: req.NotificatorID,
		})
		return
	}

	log := obs.WithTrace(ctx.Request.Context(), c.log).With(zap.String("notificator_id", req.NotificatorID))

	res, err := c.uc.Notify(ctx.Request.Context(), req.NotificatorID, req.Message)
	switch {
	case errors.Is(err, notification.ErrUnknownNotificator):
		ctx.JSON(http.StatusNotFound, notifyResponse{
			Message:       fmt.Sprintf("Notificator '%s' not found", req.NotificatorID),
			NotificatorID: req.NotificatorID,
		})
		return
	case err != nil:
		log.Error("notify", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, notifyResponse{
			Message:       "internal error",
			NotificatorID: req.NotificatorID,
		})
		return
	}

	code := http.StatusOK
	if !res.Success {
		code = http.StatusBadGateway
		log.Warn("notify failed", zap.String("summary", res.Summary()))
	}
	ctx.JSON(code, notifyResponse{
		Success:       res.Success,
		Message:       res.Summary(),
		NotificatorID: req.NotificatorID,
	})
}
