package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/in-nis/untis-back/internal/backup"
	"github.com/in-nis/untis-back/internal/cache"
	"github.com/in-nis/untis-back/internal/config"
	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/models"
	"github.com/in-nis/untis-back/internal/untis"
)

const dateLayout = "2006-01-02"

// Provider is the part of untis.Router the handlers use.
type Provider interface {
	FetchWeek(ctx context.Context, weekStart time.Time, grade string) ([]untis.Lesson, error)
	FetchExams(ctx context.Context, start, end time.Time, examTypeID int, grade string) ([]untis.Exam, error)
	AvailableGrades() []string
	DefaultGrade() string
}

// Store is the database side of the API, implemented by *db.Store.
type Store interface {
	Ping(ctx context.Context) error

	GetProfile(ctx context.Context, userID uint) (models.ProfileData, error)
	SaveProfile(ctx context.Context, userID uint, data models.ProfileData) error

	ListVacations(ctx context.Context) ([]models.Vacation, error)
	CreateVacation(ctx context.Context, v *models.Vacation) error
	UpdateVacation(ctx context.Context, v *models.Vacation) error
	DeleteVacation(ctx context.Context, id uint) error

	ListManualExams(ctx context.Context, grade string) ([]models.ManualExam, error)
	CreateManualExam(ctx context.Context, e *models.ManualExam) error
	DeleteManualExam(ctx context.Context, id string) error
}

type Handler struct {
	cfg      *config.Config
	provider Provider
	cache    *cache.Cache
	maps     *mapping.Mappings
	seen     *mapping.Seen
	store    Store
	backups  *backup.Service
	now      func() time.Time
}

type Deps struct {
	Config   *config.Config
	Provider Provider
	Cache    *cache.Cache
	Mappings *mapping.Mappings
	Seen     *mapping.Seen
	Store    Store
	Backups  *backup.Service
}

func NewHandler(d Deps) *Handler {
	seen := d.Seen
	if seen == nil {
		seen = mapping.NewSeen()
	}
	return &Handler{
		cfg:      d.Config,
		provider: d.Provider,
		cache:    d.Cache,
		maps:     d.Mappings,
		seen:     seen,
		store:    d.Store,
		backups:  d.Backups,
		now:      time.Now,
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{OK: false, Error: msg})
}

// providerError maps a core error to an HTTP answer. what names the
// resource for the permission message.
func providerError(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, untis.ErrUnknownGrade):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, untis.ErrPermissionDenied):
		fail(c, http.StatusForbidden, what+" access denied by provider")
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, "provider timed out")
	case errors.Is(err, context.Canceled):
		c.Abort()
	default:
		log.Printf("❌ %s fetch failed: %v", what, err)
		fail(c, http.StatusBadGateway, err.Error())
	}
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store, max-age=0")
}

// grade resolves the ?grade= parameter. An empty value selects the default
// grade; an unknown one answers 400.
func (h *Handler) grade(c *gin.Context) (string, bool) {
	want := strings.TrimSpace(c.Query("grade"))
	if want == "" {
		if g := h.provider.DefaultGrade(); g != "" {
			return g, true
		}
		fail(c, http.StatusBadRequest, untis.ErrUnknownGrade.Error()+": no grades configured")
		return "", false
	}
	for _, g := range h.provider.AvailableGrades() {
		if strings.EqualFold(g, want) {
			return g, true
		}
	}
	fail(c, http.StatusBadRequest, untis.ErrUnknownGrade.Error()+": "+want)
	return "", false
}

func (h *Handler) knownGrade(grade string) bool {
	for _, g := range h.provider.AvailableGrades() {
		if g == grade {
			return true
		}
	}
	return false
}

func (h *Handler) today() time.Time {
	now := h.now().In(h.cfg.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// currentMonday is the Monday of the current week in the school's timezone.
func (h *Handler) currentMonday() time.Time {
	d := h.today()
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}

func (h *Handler) parseDate(v string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(v), h.cfg.Location())
}

// weekStart reads ?weekStart=. Any date is accepted; without one the
// current Monday is used.
func (h *Handler) weekStart(c *gin.Context) (time.Time, bool) {
	v := c.Query("weekStart")
	if v == "" {
		return h.currentMonday(), true
	}
	d, err := h.parseDate(v)
	if err != nil {
		fail(c, http.StatusBadRequest, "bad weekStart; use YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func force(c *gin.Context) bool {
	v := c.Query("force")
	return v == "1" || v == "true"
}

func (h *Handler) forget(ctx context.Context, key string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, key); err != nil {
		log.Printf("⚠️ Failed to drop cache entry %s: %v", key, err)
	}
}

// week loads the raw week through the cache and records the seen labels.
func (h *Handler) week(c *gin.Context, grade string, start time.Time) ([]untis.Lesson, bool, error) {
	ctx := c.Request.Context()
	key := cache.WeekKey(grade, start)
	if force(c) {
		h.forget(ctx, key)
	}
	lessons, cached, err := cache.GetOrLoad(ctx, h.cache, key, func(ctx context.Context) ([]untis.Lesson, error) {
		return h.provider.FetchWeek(ctx, start, grade)
	})
	if err != nil {
		return nil, false, err
	}
	h.seen.Record(grade, lessons)
	return lessons, cached, nil
}

type TimetableResponse struct {
	OK        bool           `json:"ok"`
	WeekStart string         `json:"weekStart"`
	Grade     string         `json:"grade"`
	Cached    bool           `json:"cached"`
	Lessons   []untis.Lesson `json:"lessons"`
}

// GetTimetable godoc
// @Summary      Timetable of one week
// @Description  Lessons from weekStart to weekStart+6 days with course and room mappings applied
// @Tags         timetable
// @Produce      json
// @Param        weekStart  query  string  false  "First day, YYYY-MM-DD (default: Monday of the current week)"
// @Param        grade      query  string  false  "Grade (default: first configured grade)"
// @Param        force      query  string  false  "1 to bypass the response cache"
// @Success      200 {object} TimetableResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /api/timetable [get]
func (h *Handler) GetTimetable(c *gin.Context) {
	noStore(c)
	start, ok := h.weekStart(c)
	if !ok {
		return
	}
	grade, ok := h.grade(c)
	if !ok {
		return
	}
	lessons, cached, err := h.week(c, grade, start)
	if err != nil {
		providerError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusOK, TimetableResponse{
		OK:        true,
		WeekStart: start.Format(dateLayout),
		Grade:     grade,
		Cached:    cached,
		Lessons:   mapping.ApplyLessons(lessons, h.maps.Courses, h.maps.Rooms),
	})
}

type ExamsResponse struct {
	OK     bool         `json:"ok"`
	Grade  string       `json:"grade"`
	Cached bool         `json:"cached"`
	Exams  []untis.Exam `json:"exams"`
}

// examRange reads ?start=&end=&examTypeId=. The default range runs from the
// current Monday over the next 180 days.
func (h *Handler) examRange(c *gin.Context) (start, end time.Time, examType int, ok bool) {
	start = h.currentMonday()
	if v := c.Query("start"); v != "" {
		d, err := h.parseDate(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "bad start; use YYYY-MM-DD")
			return
		}
		start = d
	}
	end = start.AddDate(0, 0, 180)
	if v := c.Query("end"); v != "" {
		d, err := h.parseDate(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "bad end; use YYYY-MM-DD")
			return
		}
		end = d
	}
	if end.Before(start) {
		start, end = end, start
	}
	if v := c.Query("examTypeId"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "bad examTypeId")
			return
		}
		examType = n
	}
	return start, end, examType, true
}

// exams returns provider exams merged with the manual exams of grade that
// fall into the range. Manual entries replace provider entries with the
// same id.
func (h *Handler) exams(c *gin.Context, grade string, start, end time.Time, examType int) ([]untis.Exam, bool, error) {
	ctx := c.Request.Context()
	key := cache.ExamsKey(grade, start, end, examType)
	if force(c) {
		h.forget(ctx, key)
	}
	fetched, cached, err := cache.GetOrLoad(ctx, h.cache, key, func(ctx context.Context) ([]untis.Exam, error) {
		return h.provider.FetchExams(ctx, start, end, examType, grade)
	})
	if err != nil {
		return nil, false, err
	}

	manual, err := h.store.ListManualExams(ctx, grade)
	if err != nil {
		log.Println("⚠️ Failed to load manual exams:", err)
		manual = nil
	}
	from, to := start.Format(dateLayout), end.Format(dateLayout)

	index := make(map[string]int, len(fetched)+len(manual))
	merged := make([]untis.Exam, 0, len(fetched)+len(manual))
	add := func(e untis.Exam) {
		if i, dup := index[e.ID]; dup {
			merged[i] = e
			return
		}
		index[e.ID] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range fetched {
		add(e)
	}
	for _, m := range manual {
		if m.Date < from || m.Date > to {
			continue
		}
		add(m.ToExam())
	}
	return mapping.ApplyExams(merged, h.maps.Courses, h.maps.Rooms), cached, nil
}

// GetExams godoc
// @Summary      Exams of a grade
// @Description  Provider exams merged with admin-entered exams, mappings applied
// @Tags         exams
// @Produce      json
// @Param        grade       query  string  false  "Grade"
// @Param        start       query  string  false  "First day, YYYY-MM-DD"
// @Param        end         query  string  false  "Last day, YYYY-MM-DD"
// @Param        examTypeId  query  int     false  "Exam type filter"
// @Success      200 {object} ExamsResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /api/exams [get]
func (h *Handler) GetExams(c *gin.Context) {
	noStore(c)
	start, end, examType, ok := h.examRange(c)
	if !ok {
		return
	}
	grade, ok := h.grade(c)
	if !ok {
		return
	}
	exams, cached, err := h.exams(c, grade, start, end, examType)
	if err != nil {
		providerError(c, "exam", err)
		return
	}
	c.JSON(http.StatusOK, ExamsResponse{OK: true, Grade: grade, Cached: cached, Exams: exams})
}

// GetGrades godoc
// @Summary      Configured grades
// @Tags         timetable
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/grades [get]
func (h *Handler) GetGrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"grades":  h.provider.AvailableGrades(),
		"default": h.provider.DefaultGrade(),
	})
}

// GetMappings godoc
// @Summary      Course and room mappings
// @Description  raw label -> display label for courses and rooms
// @Tags         mappings
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/mappings [get]
func (h *Handler) GetMappings(c *gin.Context) {
	noStore(c)
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"courses": h.maps.Courses.Map(),
		"rooms":   h.maps.Rooms.Map(),
	})
}

// GetCourses godoc
// @Summary      Selectable courses
// @Description  One entry per canonical course key, from the mapping file and the subjects seen so far
// @Tags         mappings
// @Produce      json
// @Param        grade  query  string  false  "Restrict seen subjects to one grade"
// @Success      200 {object} map[string]interface{}
// @Router       /api/courses [get]
func (h *Handler) GetCourses(c *gin.Context) {
	noStore(c)
	grade := strings.ToUpper(strings.TrimSpace(c.Query("grade")))
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"courses": mapping.Courses(h.maps.Courses, h.seen, grade),
	})
}

type DebugResponse struct {
	OK         bool                `json:"ok"`
	ServerTime string              `json:"server_time"`
	Grades     []string            `json:"grades"`
	Courses    int                 `json:"course_mappings"`
	Rooms      int                 `json:"room_mappings"`
	SeenGrades []string            `json:"seen_grades"`
	Subjects   []mapping.Explained `json:"subjects"`
	RoomLabels []mapping.Explained `json:"rooms"`
}

// GetDebug godoc
// @Summary      Debug information
// @Description  Server time, grades, mapping sizes and how every seen label maps. No secrets.
// @Tags         debug
// @Produce      json
// @Success      200 {object} DebugResponse
// @Router       /api/debug [get]
func (h *Handler) GetDebug(c *gin.Context) {
	noStore(c)
	c.JSON(http.StatusOK, DebugResponse{
		OK:         true,
		ServerTime: h.now().In(h.cfg.Location()).Format(time.RFC3339),
		Grades:     h.provider.AvailableGrades(),
		Courses:    h.maps.Courses.Len(),
		Rooms:      h.maps.Rooms.Len(),
		SeenGrades: h.seen.Grades(),
		Subjects:   h.maps.Courses.Explain(h.seen.Subjects("")),
		RoomLabels: h.maps.Rooms.Explain(h.seen.Rooms("")),
	})
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      500 {object} map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "db_ping_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
