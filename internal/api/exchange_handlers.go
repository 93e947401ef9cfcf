package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolgrid/timetable-back/internal/auth"
	"github.com/schoolgrid/timetable-back/internal/exchange"
	"github.com/schoolgrid/timetable-back/internal/models"
)

// CreateExchangeRequest godoc
// @Summary      Propose a slot exchange
// @Description  Offers to swap the subject of one of your entries with another teacher's
// @Tags         exchange-requests
// @Accept       json
// @Produce      json
// @Param        body  body  exchange.CreateInput  true  "Entries to exchange"
// @Success      201 {object} models.ExchangeRequest
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /exchange-requests [post]
func (h *Handlers) CreateExchangeRequest(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	var in exchange.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	req, err := h.manager.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListExchangeRequests godoc
// @Summary      List exchange requests
// @Description  Admins see all requests; teachers only those they sent or received
// @Tags         exchange-requests
// @Produce      json
// @Param        status     query  string  false  "PENDING|APPROVED|REJECTED|CANCELLED"
// @Param        direction  query  string  false  "sent|received"
// @Success      200 {array} models.ExchangeRequest
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /exchange-requests [get]
func (h *Handlers) ListExchangeRequests(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	out, err := h.manager.List(c.Request.Context(), actor, exchange.ListFilter{
		Status:    models.ExchangeStatus(c.Query("status")),
		Direction: c.Query("direction"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetExchangeRequest godoc
// @Summary      Get one exchange request
// @Tags         exchange-requests
// @Produce      json
// @Param        id  path  string  true  "Request ID"
// @Success      200 {object} models.ExchangeRequest
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /exchange-requests/{id} [get]
func (h *Handlers) GetExchangeRequest(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	req, err := h.manager.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// TransitionRequest is the body for deciding an exchange request.
type TransitionRequest struct {
	RequestID  string                `json:"request_id" binding:"required"`
	Status     models.ExchangeStatus `json:"status" binding:"required"`
	AdminNotes string                `json:"admin_notes"`
}

// TransitionExchangeRequest godoc
// @Summary      Decide an exchange request
// @Description  Approve (target or admin, performs the swap), reject (target or admin) or cancel (requester). Only PENDING requests can transition.
// @Tags         exchange-requests
// @Accept       json
// @Produce      json
// @Param        body  body  TransitionRequest  true  "Decision"
// @Success      200 {object} models.ExchangeRequest
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /exchange-requests [put]
func (h *Handlers) TransitionExchangeRequest(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	var in TransitionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	req, err := h.manager.Transition(c.Request.Context(), actor, in.RequestID, in.Status, in.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
