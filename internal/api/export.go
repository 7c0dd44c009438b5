package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/in-nis/untis-back/internal/export"
	"github.com/in-nis/untis-back/internal/mapping"
)

func sendWorkbook(c *gin.Context, f *excelize.File, name string) {
	defer f.Close()
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", export.ContentType)
	noStore(c)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Println("❌ Failed to write workbook:", err)
	}
}

// GetTimetableXLSX godoc
// @Summary      Timetable of one week as XLSX
// @Tags         timetable
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        weekStart  query  string  false  "First day, YYYY-MM-DD"
// @Param        grade      query  string  false  "Grade"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /api/timetable.xlsx [get]
func (h *Handler) GetTimetableXLSX(c *gin.Context) {
	start, ok := h.weekStart(c)
	if !ok {
		return
	}
	grade, ok := h.grade(c)
	if !ok {
		return
	}
	lessons, _, err := h.week(c, grade, start)
	if err != nil {
		providerError(c, "timetable", err)
		return
	}
	f, err := export.WeekWorkbook(grade, start, mapping.ApplyLessons(lessons, h.maps.Courses, h.maps.Rooms))
	if err != nil {
		log.Println("❌ Failed to build timetable workbook:", err)
		fail(c, http.StatusInternalServerError, "Failed to build workbook")
		return
	}
	sendWorkbook(c, f, export.FileName("stundenplan", grade, start))
}

// GetExamsXLSX godoc
// @Summary      Exams as XLSX
// @Tags         exams
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        grade  query  string  false  "Grade"
// @Param        start  query  string  false  "First day, YYYY-MM-DD"
// @Param        end    query  string  false  "Last day, YYYY-MM-DD"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Router       /api/exams.xlsx [get]
func (h *Handler) GetExamsXLSX(c *gin.Context) {
	start, end, examType, ok := h.examRange(c)
	if !ok {
		return
	}
	grade, ok := h.grade(c)
	if !ok {
		return
	}
	exams, _, err := h.exams(c, grade, start, end, examType)
	if err != nil {
		providerError(c, "exam", err)
		return
	}
	f, err := export.ExamsWorkbook(grade, exams)
	if err != nil {
		log.Println("❌ Failed to build exams workbook:", err)
		fail(c, http.StatusInternalServerError, "Failed to build workbook")
		return
	}
	sendWorkbook(c, f, export.FileName("klausuren", grade, start))
}
