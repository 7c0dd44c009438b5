package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/in-nis/untis-back/internal/auth"
	"github.com/in-nis/untis-back/internal/models"
)

// GetProfile godoc
// @Summary      Current user's profile
// @Tags         profile
// @Produce      json
// @Success      200 {object} models.ProfileData
// @Failure      401 {object} map[string]string
// @Security     BearerAuth
// @Router       /api/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	noStore(c)
	p, err := h.store.GetProfile(c.Request.Context(), auth.UserID(c))
	if err != nil {
		log.Println("❌ Failed to load profile:", err)
		fail(c, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": p})
}

// PutProfile godoc
// @Summary      Replace the current user's profile
// @Description  grade, selected courses and exams, theme and colors
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body  models.ProfileData  true  "Profile"
// @Success      200 {object} models.ProfileData
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/profile [put]
func (h *Handler) PutProfile(c *gin.Context) {
	var req models.ProfileData
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Normalize()
	if req.Grade != "" {
		if !h.knownGrade(req.Grade) {
			fail(c, http.StatusBadRequest, "unknown grade "+req.Grade)
			return
		}
	}
	if err := h.store.SaveProfile(c.Request.Context(), auth.UserID(c), req); err != nil {
		log.Println("❌ Failed to save profile:", err)
		fail(c, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": req})
}
