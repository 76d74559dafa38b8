package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/response"
)

type notificationService interface {
	ListMine(ctx context.Context, principal models.Principal, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, principal models.Principal) error
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler builds a notification handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	items, err := h.service.ListMine(c.Request.Context(), principalFromContext(c), unread)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
