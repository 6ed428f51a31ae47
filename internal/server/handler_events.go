package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/dispatch"
)

// EventHandler is the intake for notification dispatch requests. The
// complaint service calls these endpoints when a complaint is filed or its
// status changes; the dispatcher fans the notice out to live connections.
type EventHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewEventHandler returns the dispatch endpoint handler.
func NewEventHandler(d *dispatch.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

type complaintEventRequest struct {
	Seq         int    `json:"seq"`
	ComplaintID string `json:"complaintId"`
	UserName    string `json:"userName" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Category    string `json:"category"`
}

type statusEventRequest struct {
	OwnerID     int    `json:"ownerId" binding:"required"`
	Seq         int    `json:"seq"`
	ComplaintID string `json:"complaintId"`
	Status      string `json:"status" binding:"required"`
	Title       string `json:"title"`
}

// Complaint broadcasts a newComplaint notice to every connected admin.
// Zero live admins is a delivery miss, not an error.
func (h *EventHandler) Complaint(c *gin.Context) {
	var req complaintEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userName and title are required"})
		return
	}
	notice := dispatch.NewComplaintEvent(req.Seq, req.ComplaintID, req.UserName, req.Title, req.Category)
	delivered := h.dispatcher.NotifyNewComplaint(c.Request.Context(), notice)
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}

// Status delivers a statusUpdate notice to the complaint owner's connections.
func (h *EventHandler) Status(c *gin.Context) {
	var req statusEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ownerId and status are required"})
		return
	}
	notice := dispatch.StatusUpdateEvent(req.Seq, req.ComplaintID, req.Status, req.Title)
	delivered := h.dispatcher.NotifyStatusUpdate(c.Request.Context(), req.OwnerID, notice)
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}
