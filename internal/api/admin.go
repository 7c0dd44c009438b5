package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/in-nis/untis-back/internal/auth"
	"github.com/in-nis/untis-back/internal/backup"
	"github.com/in-nis/untis-back/internal/db"
	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/models"
	"github.com/in-nis/untis-back/internal/normalize"
)

func (h *Handler) mappingStore(c *gin.Context) (mapping.Kind, *mapping.Store, bool) {
	kind, err := mapping.ParseKind(c.Param("kind"))
	if err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return "", nil, false
	}
	store, err := h.maps.Store(kind)
	if err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return "", nil, false
	}
	return kind, store, true
}

// GetMappingEntries godoc
// @Summary      Entries of one mapping file
// @Tags         admin
// @Produce      json
// @Param        kind  path  string  true  "courses or rooms"
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/mappings/{kind} [get]
func (h *Handler) GetMappingEntries(c *gin.Context) {
	kind, store, ok := h.mappingStore(c)
	if !ok {
		return
	}
	noStore(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "kind": kind, "entries": store.Entries()})
}

// MappingRequest sets one raw label.
type MappingRequest struct {
	Raw   string `json:"raw" binding:"required"`
	Label string `json:"label" binding:"required"`
}

// PutMappingEntry godoc
// @Summary      Map a raw label
// @Description  Replaces the entry with the same canonical key
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        kind  path  string          true  "courses or rooms"
// @Param        body  body  MappingRequest  true  "raw -> label"
// @Success      200 {object} mapping.Entry
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/mappings/{kind} [put]
func (h *Handler) PutMappingEntry(c *gin.Context) {
	kind, store, ok := h.mappingStore(c)
	if !ok {
		return
	}
	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "raw and label are required")
		return
	}
	e, err := store.Set(req.Raw, req.Label)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("✅ %s mapped %q -> %q by %s", kind, e.Raw, e.Label, auth.Username(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "entry": e})
}

// DeleteMappingEntry godoc
// @Summary      Remove a mapping entry
// @Tags         admin
// @Produce      json
// @Param        kind  path   string  true  "courses or rooms"
// @Param        raw   query  string  true  "Raw label (any spelling variant)"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/mappings/{kind} [delete]
func (h *Handler) DeleteMappingEntry(c *gin.Context) {
	kind, store, ok := h.mappingStore(c)
	if !ok {
		return
	}
	raw := c.Query("raw")
	if raw == "" {
		var req struct {
			Raw string `json:"raw"`
		}
		_ = c.ShouldBindJSON(&req)
		raw = req.Raw
	}
	if strings.TrimSpace(raw) == "" {
		fail(c, http.StatusBadRequest, "raw is required")
		return
	}
	found, err := store.Delete(raw)
	if err != nil {
		log.Println("❌ Failed to write mapping:", err)
		fail(c, http.StatusInternalServerError, "Failed to save mapping")
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "no mapping for "+raw)
		return
	}
	log.Printf("✅ %s mapping for %q removed by %s", kind, raw, auth.Username(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// VariantGroup is one canonical key with every spelling seen for it.
type VariantGroup struct {
	Key      string   `json:"key"`
	Variants []string `json:"variants"`
	Label    string   `json:"label"`
	Mapped   bool     `json:"mapped"`
}

// GetVariants godoc
// @Summary      Seen spelling variants
// @Description  Raw labels seen in served weeks, grouped by canonical key
// @Tags         admin
// @Produce      json
// @Param        kind   path   string  true   "courses or rooms"
// @Param        grade  query  string  false  "Restrict to one grade"
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/variants/{kind} [get]
func (h *Handler) GetVariants(c *gin.Context) {
	kind, store, ok := h.mappingStore(c)
	if !ok {
		return
	}
	groups := h.seen.Variants(kind, c.Query("grade"))
	out := make([]VariantGroup, 0, len(groups))
	for _, key := range normalize.SortedKeys(groups) {
		variants := groups[key]
		label, mapped := store.Lookup(variants[0])
		if !mapped {
			label = variants[0]
		}
		out = append(out, VariantGroup{Key: key, Variants: variants, Label: label, Mapped: mapped})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "kind": kind, "groups": out})
}

// ListManualExams godoc
// @Summary      Admin-entered exams
// @Tags         admin
// @Produce      json
// @Param        grade  query  string  false  "Grade; all grades when empty"
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/exams [get]
func (h *Handler) ListManualExams(c *gin.Context) {
	grade := strings.ToUpper(strings.TrimSpace(c.Query("grade")))
	exams, err := h.store.ListManualExams(c.Request.Context(), grade)
	if err != nil {
		log.Println("❌ Failed to list manual exams:", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch exams")
		return
	}
	if exams == nil {
		exams = []models.ManualExam{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "exams": exams})
}

// CreateManualExam godoc
// @Summary      Add an exam
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  models.ManualExam  true  "Exam"
// @Success      201 {object} models.ManualExam
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/exams [post]
func (h *Handler) CreateManualExam(c *gin.Context) {
	var e models.ManualExam
	if err := c.ShouldBindJSON(&e); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if err := e.Normalize(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.knownGrade(e.Grade) {
		fail(c, http.StatusBadRequest, "unknown grade "+e.Grade)
		return
	}
	e.ID = uuid.NewString()
	e.CreatedBy = auth.Username(c)
	e.CreatedAt = h.now().UTC()
	if err := h.store.CreateManualExam(c.Request.Context(), &e); err != nil {
		log.Println("❌ Failed to create manual exam:", err)
		fail(c, http.StatusInternalServerError, "Failed to save exam")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "exam": e})
}

// DeleteManualExam godoc
// @Summary      Delete an admin-entered exam
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Exam ID"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/exams/{id} [delete]
func (h *Handler) DeleteManualExam(c *gin.Context) {
	if err := h.store.DeleteManualExam(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			fail(c, http.StatusNotFound, "exam not found")
			return
		}
		log.Println("❌ Failed to delete manual exam:", err)
		fail(c, http.StatusInternalServerError, "Failed to delete exam")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DownloadBackup godoc
// @Summary      Download a backup snapshot
// @Tags         admin
// @Produce      json
// @Success      200 {object} backup.Snapshot
// @Security     BearerAuth
// @Router       /api/admin/backup [get]
func (h *Handler) DownloadBackup(c *gin.Context) {
	snap, err := h.backups.Build(c.Request.Context())
	if err != nil {
		log.Println("❌ Failed to build backup:", err)
		fail(c, http.StatusInternalServerError, "Failed to build backup")
		return
	}
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="untis-backup-`+snap.CreatedAt.Format("20060102T150405Z")+`.json"`)
	c.JSON(http.StatusOK, snap)
}

// StoreBackup godoc
// @Summary      Store a backup snapshot
// @Description  Writes to MinIO when configured, else to DATA_DIR/backups
// @Tags         admin
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/backup [post]
func (h *Handler) StoreBackup(c *gin.Context) {
	name, err := h.backups.Save(c.Request.Context())
	if err != nil {
		log.Println("❌ Failed to store backup:", err)
		fail(c, http.StatusInternalServerError, "Failed to store backup")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "name": name})
}

// RestoreBackup godoc
// @Summary      Restore a backup snapshot
// @Description  Restores the posted snapshot, or the latest stored one with ?latest=1
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        latest  query  string           false  "1 to restore the latest stored backup"
// @Param        body    body   backup.Snapshot  false  "Snapshot"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/restore [post]
func (h *Handler) RestoreBackup(c *gin.Context) {
	ctx := c.Request.Context()
	var snap *backup.Snapshot
	name := ""
	if c.Query("latest") == "1" {
		var err error
		snap, name, err = h.backups.Latest(ctx)
		if err != nil {
			if errors.Is(err, backup.ErrNoBackups) {
				fail(c, http.StatusNotFound, err.Error())
				return
			}
			log.Println("❌ Failed to load backup:", err)
			fail(c, http.StatusInternalServerError, "Failed to load backup")
			return
		}
	} else {
		snap = &backup.Snapshot{}
		if err := c.ShouldBindJSON(snap); err != nil {
			fail(c, http.StatusBadRequest, "Invalid snapshot")
			return
		}
	}

	if err := h.backups.Restore(ctx, snap); err != nil {
		if errors.Is(err, backup.ErrBadSnapshot) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Println("❌ Failed to restore backup:", err)
		fail(c, http.StatusInternalServerError, "Failed to restore backup")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"name":         name,
		"courses":      len(snap.Courses),
		"rooms":        len(snap.Rooms),
		"vacations":    len(snap.Vacations),
		"manual_exams": len(snap.ManualExams),
	})
}

// InvalidateCache godoc
// @Summary      Drop cached provider responses
// @Tags         admin
// @Produce      json
// @Param        prefix  query  string  false  "Key prefix such as week:EF; everything when empty"
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /api/admin/cache/invalidate [post]
func (h *Handler) InvalidateCache(c *gin.Context) {
	prefix := c.Query("prefix")
	if h.cache != nil {
		if err := h.cache.Invalidate(c.Request.Context(), prefix); err != nil {
			log.Println("❌ Failed to invalidate cache:", err)
			fail(c, http.StatusInternalServerError, "Failed to invalidate cache")
			return
		}
	}
	log.Printf("🔁 Cache invalidated (prefix %q) by %s", prefix, auth.Username(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "prefix": prefix})
}
