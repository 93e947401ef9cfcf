package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgrid/timetable-back/internal/schedule"
)

// GetSchedule godoc
// @Summary      Get the schedule grid
// @Description  Returns entries grouped into cells ordered Monday to Friday, then by slot start time
// @Tags         schedule
// @Produce      json
// @Param        class       query  string  false  "Class name, e.g. 10A"
// @Param        teacher_id  query  int     false  "Filter by owning teacher"
// @Param        day         query  int     false  "Weekday 1..5"
// @Success      200 {array} schedule.Cell
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /schedule [get]
func (h *Handlers) GetSchedule(c *gin.Context) {
	filter := schedule.EntryFilter{ClassName: c.Query("class")}

	if raw := c.Query("teacher_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid teacher_id"})
			return
		}
		filter.TeacherID = uint(id)
	}
	if raw := c.Query("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid day"})
			return
		}
		filter.Day = day
	}

	entries, err := h.grid.Entries(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule.GroupByDayAndSlot(entries))
}

// ImportSchedule godoc
// @Summary      Import a timetable workbook
// @Description  Uploads an xlsx file; rows are validated like regular writes and bad rows are reported
// @Tags         schedule
// @Accept       mpfd
// @Produce      json
// @Param        file  formData  file  true  "Workbook (.xlsx)"
// @Success      200 {object} excel.Report
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /schedule/import [post]
func (h *Handlers) ImportSchedule(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file upload"})
		return
	}
	defer file.Close()

	report, err := h.importer.Import(c.Request.Context(), file)
	if err != nil {
		h.logger.Error("timetable import failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
