package untis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Exam is one normalized exam entry.
type Exam struct {
	ID         string   `json:"id"`
	Grade      string   `json:"grade"`
	Date       string   `json:"date"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Subject    string   `json:"subject"`
	SubjectID  int      `json:"subjectId"`
	ClassIDs   []int    `json:"classIds"`
	Classes    []string `json:"classes"`
	TeacherIDs []int    `json:"teacherIds"`
	Teachers   []string `json:"teachers"`
	Name       string   `json:"name"`
	Rooms      []string `json:"rooms"`
	Room       string   `json:"room"`
	Note       string   `json:"note"`
}

// rawExam is either a restExam or an rpcExam. Each variant knows how to turn
// itself into an Exam; ok is false when the entry has no usable date.
type rawExam interface {
	toExam(l Lookups, grade string) (Exam, bool)
}

// rpcExam comes from the getExams JSON-RPC method: packed ints and id lists.
type rpcExam struct {
	ID        scalar   `json:"id"`
	Date      scalar   `json:"date"`
	StartTime scalar   `json:"startTime"`
	EndTime   scalar   `json:"endTime"`
	Subject   scalar   `json:"subject"`
	Classes   flexList `json:"classes"`
	Teachers  flexList `json:"teachers"`
	Rooms     flexList `json:"rooms"`
	Name      scalar   `json:"name"`
	Text      scalar   `json:"text"`
}

// restExam comes from the /api/exams REST path: names instead of ids, rooms
// as a nested list, times as text or ints.
type restExam struct {
	ID           scalar   `json:"id"`
	ExamType     scalar   `json:"examType"`
	Name         scalar   `json:"name"`
	ExamDate     scalar   `json:"examDate"`
	Date         scalar   `json:"date"`
	StartTime    scalar   `json:"startTime"`
	EndTime      scalar   `json:"endTime"`
	Subject      scalar   `json:"subject"`
	SubjectID    scalar   `json:"subjectId"`
	StudentClass flexList `json:"studentClass"`
	Teachers     flexList `json:"teachers"`
	Rooms        flexList `json:"rooms"`
	Text         scalar   `json:"text"`
}

func (x rpcExam) toExam(l Lookups, grade string) (Exam, bool) {
	e := Exam{
		ID:    x.ID.String(),
		Grade: grade,
		Date:  isoDate(x.Date),
		Start: normalizeTime(x.StartTime),
		End:   normalizeTime(x.EndTime),
		Name:  x.Name.String(),
		Note:  x.Text.String(),
	}
	if id, ok := x.Subject.Int(); ok {
		e.SubjectID = id
		e.Subject = name(l.Subjects, id)
	} else {
		e.Subject = x.Subject.String()
	}
	e.ClassIDs, e.Classes = x.Classes.resolve(l.Classes)
	e.TeacherIDs, e.Teachers = x.Teachers.resolve(l.Teachers)
	_, e.Rooms = x.Rooms.resolve(l.Rooms)
	return finishExam(e)
}

func (x restExam) toExam(l Lookups, grade string) (Exam, bool) {
	date := x.ExamDate
	if date == "" {
		date = x.Date
	}
	e := Exam{
		ID:      x.ID.String(),
		Grade:   grade,
		Date:    isoDate(date),
		Start:   normalizeTime(x.StartTime),
		End:     normalizeTime(x.EndTime),
		Subject: x.Subject.String(),
		Name:    firstText(x.Name.String(), x.ExamType.String()),
		Note:    x.Text.String(),
	}
	if id, ok := x.SubjectID.Int(); ok {
		e.SubjectID = id
		if e.Subject == "" {
			e.Subject = name(l.Subjects, id)
		}
	}
	e.ClassIDs, e.Classes = x.StudentClass.resolve(l.Classes)
	e.TeacherIDs, e.Teachers = x.Teachers.resolve(l.Teachers)
	_, e.Rooms = x.Rooms.resolve(l.Rooms)
	return finishExam(e)
}

// finishExam fills the derived fields shared by both variants.
func finishExam(e Exam) (Exam, bool) {
	if !validISODate(e.Date) {
		return Exam{}, false
	}
	if e.ID == "" || e.ID == "0" {
		e.ID = ExamKey(e.Date, e.Subject, e.Start, e.End)
	}
	e.Room = strings.Join(e.Rooms, ", ")
	return e, true
}

// ExamKey is the id of an exam the provider sent without one. Fetching the
// same range twice yields the same key.
func ExamKey(date, subject, start, end string) string {
	return fmt.Sprintf("%s_%s_%s_%s", date, subject, start, end)
}

// decodeExam picks the variant by the fields present.
func decodeExam(raw json.RawMessage) (rawExam, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	_, hasExamDate := probe["examDate"]
	_, hasStudentClass := probe["studentClass"]
	_, hasClasses := probe["classes"]

	if hasExamDate || hasStudentClass || (!hasClasses && isStringTime(probe["startTime"])) {
		var x restExam
		if err := json.Unmarshal(raw, &x); err != nil {
			return nil, err
		}
		return x, nil
	}
	var x rpcExam
	if err := json.Unmarshal(raw, &x); err != nil {
		return nil, err
	}
	return x, nil
}

func isStringTime(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

// examItems accepts a bare list, {"exams": [...]} or {"data": {"exams": [...]}}.
func examItems(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		err := json.Unmarshal(raw, &items)
		return items, err
	}

	var wrapped struct {
		Exams json.RawMessage `json:"exams"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Exams) > 0 {
		return examItems(wrapped.Exams)
	}
	if len(wrapped.Data) > 0 {
		return examItems(wrapped.Data)
	}
	return nil, nil
}

// normalizeExams turns a raw payload into sorted, de-duplicated exams.
// Entries that cannot be decoded or placed on a date are dropped.
func normalizeExams(raw json.RawMessage, l Lookups, grade string) ([]Exam, error) {
	items, err := examItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode exams: %w", err)
	}

	seen := make(map[string]bool, len(items))
	out := make([]Exam, 0, len(items))
	for _, item := range items {
		x, err := decodeExam(item)
		if err != nil {
			continue
		}
		e, ok := x.toExam(l, grade)
		if !ok || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	SortExams(out)
	return out, nil
}

// SortExams orders exams by date, start time and subject.
func SortExams(exams []Exam) {
	sort.SliceStable(exams, func(i, j int) bool {
		a, b := exams[i], exams[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Subject < b.Subject
	})
}

// flexList reads ids, names, objects or a "A, B; C" string.
type flexList struct {
	IDs   []int
	Names []string
}

func (f *flexList) UnmarshalJSON(b []byte) error {
	*f = flexList{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.Names = splitNames(s)
		return nil
	}
	if b[0] != '[' {
		var s scalar
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if id, ok := s.Int(); ok {
			f.IDs = append(f.IDs, id)
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		switch item[0] {
		case '{':
			var el struct {
				ID          int    `json:"id"`
				Name        string `json:"name"`
				LongName    string `json:"longName"`
				DisplayName string `json:"displayName"`
			}
			if err := json.Unmarshal(item, &el); err != nil {
				return err
			}
			if n := firstText(el.LongName, el.DisplayName, el.Name); n != "" {
				f.Names = append(f.Names, n)
			} else if el.ID != 0 {
				f.IDs = append(f.IDs, el.ID)
			}
		case '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			if s = strings.TrimSpace(s); s != "" {
				f.Names = append(f.Names, s)
			}
		default:
			var s scalar
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			if id, ok := s.Int(); ok {
				f.IDs = append(f.IDs, id)
			}
		}
	}
	return nil
}

// resolve returns the ids and the display names; ids are looked up in m.
func (f flexList) resolve(m map[int]string) ([]int, []string) {
	ids := append([]int{}, f.IDs...)
	out := append([]string{}, f.Names...)
	out = append(out, names(m, f.IDs)...)
	return ids, out
}

func splitNames(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
