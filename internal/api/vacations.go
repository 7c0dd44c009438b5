package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/in-nis/untis-back/internal/db"
	"github.com/in-nis/untis-back/internal/models"
)

// VacationRequest is the body of vacation create and update calls.
type VacationRequest struct {
	Title     string `json:"title" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date"`
}

// GetVacations godoc
// @Summary      School holidays
// @Tags         vacations
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/vacations [get]
func (h *Handler) GetVacations(c *gin.Context) {
	noStore(c)
	vs, err := h.store.ListVacations(c.Request.Context())
	if err != nil {
		log.Println("❌ Failed to list vacations:", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch vacations")
		return
	}
	if vs == nil {
		vs = []models.Vacation{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "vacations": vs})
}

func bindVacation(c *gin.Context) (models.Vacation, bool) {
	var req VacationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "title and start_date are required")
		return models.Vacation{}, false
	}
	v := models.Vacation{Title: req.Title, StartDate: req.StartDate, EndDate: req.EndDate}
	if err := v.Normalize(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return models.Vacation{}, false
	}
	return v, true
}

func vacationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "bad vacation id")
		return 0, false
	}
	return uint(id), true
}

// CreateVacation godoc
// @Summary      Add a holiday
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  VacationRequest  true  "Holiday"
// @Success      201 {object} models.Vacation
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/vacations [post]
func (h *Handler) CreateVacation(c *gin.Context) {
	v, ok := bindVacation(c)
	if !ok {
		return
	}
	if err := h.store.CreateVacation(c.Request.Context(), &v); err != nil {
		log.Println("❌ Failed to create vacation:", err)
		fail(c, http.StatusInternalServerError, "Failed to save vacation")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "vacation": v})
}

// UpdateVacation godoc
// @Summary      Change a holiday
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Vacation ID"
// @Param        body  body  VacationRequest  true  "Holiday"
// @Success      200 {object} models.Vacation
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/vacations/{id} [put]
func (h *Handler) UpdateVacation(c *gin.Context) {
	id, ok := vacationID(c)
	if !ok {
		return
	}
	v, ok := bindVacation(c)
	if !ok {
		return
	}
	v.ID = id
	if err := h.store.UpdateVacation(c.Request.Context(), &v); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			fail(c, http.StatusNotFound, "vacation not found")
			return
		}
		log.Println("❌ Failed to update vacation:", err)
		fail(c, http.StatusInternalServerError, "Failed to save vacation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "vacation": v})
}

// DeleteVacation godoc
// @Summary      Delete a holiday
// @Tags         admin
// @Produce      json
// @Param        id  path  int  true  "Vacation ID"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/vacations/{id} [delete]
func (h *Handler) DeleteVacation(c *gin.Context) {
	id, ok := vacationID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteVacation(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			fail(c, http.StatusNotFound, "vacation not found")
			return
		}
		log.Println("❌ Failed to delete vacation:", err)
		fail(c, http.StatusInternalServerError, "Failed to delete vacation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
