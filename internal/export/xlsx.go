package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/in-nis/untis-back/internal/untis"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	weekSheet  = "Woche"
	gridSheet  = "Raster"
	examsSheet = "Klausuren"
)

var weekdays = []string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag", "Sonntag"}

var statusLabels = map[untis.Status]string{
	untis.StatusNormal:       "",
	untis.StatusSubstitution: "Vertretung",
	untis.StatusChanged:      "Änderung",
	untis.StatusCancelled:    "Entfall",
}

// styles are created once per workbook.
type styles struct {
	header    int
	cancelled int
	changed   int
	wrap      int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	}); err != nil {
		return s, err
	}
	if s.cancelled, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Strike: true, Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
	}); err != nil {
		return s, err
	}
	if s.changed, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFEB9C"}},
	}); err != nil {
		return s, err
	}
	s.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	return s, err
}

func (s styles) forStatus(st untis.Status) int {
	switch st {
	case untis.StatusCancelled:
		return s.cancelled
	case untis.StatusSubstitution, untis.StatusChanged:
		return s.changed
	}
	return 0
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	return f.SetSheetRow(sheet, cell(1, row), &values)
}

func writeHeader(f *excelize.File, sheet string, st styles, titles []string, widths []float64) error {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := writeRow(f, sheet, 1, values); err != nil {
		return err
	}
	last := cell(len(titles), 1)
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// WeekWorkbook renders one week as a flat list and as a weekday grid.
func WeekWorkbook(grade string, weekStart time.Time, lessons []untis.Lesson) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", weekSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := weekList(f, st, lessons); err != nil {
		f.Close()
		return nil, fmt.Errorf("week list: %w", err)
	}
	if _, err := f.NewSheet(gridSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := weekGrid(f, st, weekStart, lessons); err != nil {
		f.Close()
		return nil, fmt.Errorf("week grid: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Stundenplan %s ab %s", grade, weekStart.Format("2006-01-02")),
		Creator: "untis-back",
	}); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func weekList(f *excelize.File, st styles, lessons []untis.Lesson) error {
	titles := []string{"Datum", "Tag", "Beginn", "Ende", "Fach", "Lehrer", "Raum", "Status", "Hinweis"}
	widths := []float64{12, 12, 8, 8, 24, 14, 12, 12, 40}
	if err := writeHeader(f, weekSheet, st, titles, widths); err != nil {
		return err
	}
	for i, l := range lessons {
		row := i + 2
		if err := writeRow(f, weekSheet, row, []any{
			l.Date, weekdayOf(l.Date), l.Start, l.End, l.Subject, l.Teacher, l.Room, statusLabels[l.Status], l.Note,
		}); err != nil {
			return err
		}
		if style := st.forStatus(l.Status); style != 0 {
			if err := f.SetCellStyle(weekSheet, cell(1, row), cell(len(titles), row), style); err != nil {
				return err
			}
		}
	}
	return nil
}

// weekGrid lays lessons out with one row per time slot and one column per
// day. Parallel lessons of the same slot share a cell.
func weekGrid(f *excelize.File, st styles, weekStart time.Time, lessons []untis.Lesson) error {
	titles := []string{"Zeit"}
	widths := []float64{13}
	dates := make([]string, 7)
	for i := range dates {
		d := weekStart.AddDate(0, 0, i)
		dates[i] = d.Format("2006-01-02")
		titles = append(titles, fmt.Sprintf("%s %s", weekdays[i], d.Format("02.01.")))
		widths = append(widths, 22)
	}
	if err := writeHeader(f, gridSheet, st, titles, widths); err != nil {
		return err
	}

	type slot struct{ start, end string }
	var slots []slot
	rowOf := map[slot]int{}
	for _, l := range lessons {
		s := slot{l.Start, l.End}
		if _, ok := rowOf[s]; !ok {
			rowOf[s] = 0
			slots = append(slots, s)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].start != slots[j].start {
			return slots[i].start < slots[j].start
		}
		return slots[i].end < slots[j].end
	})
	for i, s := range slots {
		rowOf[s] = i + 2
		if err := f.SetCellValue(gridSheet, cell(1, i+2), s.start+"-"+s.end); err != nil {
			return err
		}
	}

	colOf := map[string]int{}
	for i, d := range dates {
		colOf[d] = i + 2
	}
	text := map[string]string{}
	worst := map[string]untis.Status{}
	for _, l := range lessons {
		col, ok := colOf[l.Date]
		if !ok {
			continue
		}
		ref := cell(col, rowOf[slot{l.Start, l.End}])
		entry := l.Subject
		if l.Room != "" {
			entry += " (" + l.Room + ")"
		}
		if l.Status == untis.StatusCancelled {
			entry += " entfällt"
		}
		if text[ref] != "" {
			text[ref] += "\n"
		}
		text[ref] += entry
		if worst[ref] == "" || worst[ref] == untis.StatusNormal {
			worst[ref] = l.Status
		}
	}
	for ref, v := range text {
		if err := f.SetCellValue(gridSheet, ref, v); err != nil {
			return err
		}
		style := st.forStatus(worst[ref])
		if style == 0 {
			style = st.wrap
		}
		if err := f.SetCellStyle(gridSheet, ref, ref, style); err != nil {
			return err
		}
	}
	return nil
}

// ExamsWorkbook renders an exam list.
func ExamsWorkbook(grade string, exams []untis.Exam) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", examsSheet); err != nil {
		f.Close()
		return nil, err
	}
	titles := []string{"Datum", "Tag", "Beginn", "Ende", "Fach", "Bezeichnung", "Lehrer", "Raum", "Hinweis"}
	widths := []float64{12, 12, 8, 8, 24, 24, 18, 14, 40}
	if err := writeHeader(f, examsSheet, st, titles, widths); err != nil {
		f.Close()
		return nil, err
	}
	for i, e := range exams {
		if err := writeRow(f, examsSheet, i+2, []any{
			e.Date, weekdayOf(e.Date), e.Start, e.End, e.Subject, e.Name, strings.Join(e.Teachers, ", "), e.Room, e.Note,
		}); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Klausuren " + grade,
		Creator: "untis-back",
	}); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func weekdayOf(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return weekdays[(int(d.Weekday())+6)%7]
}

// FileName is the download name of an export.
func FileName(kind, grade string, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s.xlsx", kind, grade, day.Format("2006-01-02"))
}
