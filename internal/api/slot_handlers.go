package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgrid/timetable-back/internal/slots"
)

// CreateTimeSlot godoc
// @Summary      Create a time slot
// @Description  Adds a slot to a weekday; rejects intervals overlapping an existing slot of that day
// @Tags         time-slots
// @Accept       json
// @Produce      json
// @Param        body  body  slots.CreateSlotInput  true  "Slot definition"
// @Success      201 {object} models.TimeSlot
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /time-slots [post]
func (h *Handlers) CreateTimeSlot(c *gin.Context) {
	var in slots.CreateSlotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	slot, err := h.registry.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// UpdateTimeSlot godoc
// @Summary      Update a time slot
// @Description  Patches a slot and re-validates the effective interval against the other slots of the day
// @Tags         time-slots
// @Accept       json
// @Produce      json
// @Param        id    path  int                    true  "Slot ID"
// @Param        body  body  slots.UpdateSlotInput  true  "Fields to change"
// @Success      200 {object} models.TimeSlot
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /time-slots/{id} [put]
func (h *Handlers) UpdateTimeSlot(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid slot id"})
		return
	}

	var in slots.UpdateSlotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	slot, err := h.registry.Update(c.Request.Context(), uint(id), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DeleteTimeSlot godoc
// @Summary      Delete a time slot
// @Description  Fails with the blocking entries listed while schedule entries still reference the slot
// @Tags         time-slots
// @Produce      json
// @Param        id  path  int  true  "Slot ID"
// @Success      200 {object} map[string]string
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /time-slots/{id} [delete]
func (h *Handlers) DeleteTimeSlot(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid slot id"})
		return
	}

	if err := h.registry.Delete(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Time slot deleted"})
}

// ListTimeSlots godoc
// @Summary      List time slots
// @Description  Returns slots ordered by day and start time, optionally for one day
// @Tags         time-slots
// @Produce      json
// @Param        day  query  int  false  "Weekday 1..5"
// @Success      200 {array} models.TimeSlot
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /time-slots [get]
func (h *Handlers) ListTimeSlots(c *gin.Context) {
	day := 0
	if raw := c.Query("day"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid day"})
			return
		}
		day = parsed
	}

	out, err := h.registry.List(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("list time slots failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
