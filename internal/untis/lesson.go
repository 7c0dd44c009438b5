package untis

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

type Status string

const (
	StatusNormal       Status = "normal"
	StatusSubstitution Status = "vertretung"
	StatusChanged      Status = "aenderung"
	StatusCancelled    Status = "entfaellt"
)

// specialPlaceholder is shown for special entries that carry no text at all.
const specialPlaceholder = "Sondertermin"

// Lesson is one normalized timetable slot.
type Lesson struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Subject         string `json:"subject"`
	SubjectOriginal string `json:"subject_original"`
	Teacher         string `json:"teacher"`
	Room            string `json:"room"`
	Status          Status `json:"status"`
	Note            string `json:"note"`
	Special         bool   `json:"special"`
	Grade           string `json:"grade"`
}

// rawLesson is a getTimetable entry. Only the first subject, teacher and room
// reference is used.
type rawLesson struct {
	ID               scalar `json:"id"`
	Date             scalar `json:"date"`
	StartTime        scalar `json:"startTime"`
	EndTime          scalar `json:"endTime"`
	Subjects         refs   `json:"su"`
	Teachers         refs   `json:"te"`
	Rooms            refs   `json:"ro"`
	Classes          refs   `json:"kl"`
	Code             scalar `json:"code"`
	CellState        scalar `json:"cellState"`
	Cancelled        scalar `json:"cancelled"`
	SubstText        scalar `json:"substText"`
	LsText           scalar `json:"lstext"`
	SubstitutionText scalar `json:"substitutionText"`
	PeriodText       scalar `json:"periodText"`
	LessonText       scalar `json:"lessonText"`
	LessonCode       scalar `json:"lessonCode"`
	ActivityType     scalar `json:"activityType"`
}

// decodeLessons decodes entry by entry so one broken record does not hide
// the rest of the week.
func decodeLessons(raw json.RawMessage, grade string) ([]rawLesson, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode getTimetable: %w", err)
	}
	out := make([]rawLesson, 0, len(items))
	for i, item := range items {
		var x rawLesson
		if err := json.Unmarshal(item, &x); err != nil {
			log.Printf("⚠️ untis[%s]: skipping timetable entry %d: %v", grade, i, err)
			continue
		}
		out = append(out, x)
	}
	return out, nil
}

func normalizeLesson(x rawLesson, l Lookups, grade string) Lesson {
	subject := name(l.Subjects, firstID(x.Subjects))
	teacher := name(l.Teachers, firstID(x.Teachers))
	room := name(l.Rooms, firstID(x.Rooms))

	note := firstText(x.LsText.String(), x.SubstitutionText.String(), x.PeriodText.String())
	lessonText := strings.TrimSpace(x.LessonText.String())

	special := isSpecial(x, subject, note, lessonText)
	display := subject
	if special {
		display = firstText(note, lessonText, subject, specialPlaceholder)
	}

	return Lesson{
		ID:              fmt.Sprintf("%s-%s-%s", x.ID, x.Date, x.StartTime),
		Date:            isoDate(x.Date),
		Start:           normalizeTime(orZero(x.StartTime)),
		End:             normalizeTime(orZero(x.EndTime)),
		Subject:         display,
		SubjectOriginal: subject,
		Teacher:         teacher,
		Room:            room,
		Status:          classifyStatus(x, note),
		Note:            note,
		Special:         special,
		Grade:           grade,
	}
}

// classifyStatus checks, first match wins: explicit cancellation fields,
// substitution markers, change markers, cancellation words in free text.
func classifyStatus(x rawLesson, note string) Status {
	txt := strings.ToLower(note)
	code := strings.ToLower(x.Code.String())
	cell := strings.ToLower(x.CellState.String())
	subst := strings.ToLower(x.SubstText.String())

	switch {
	case code == "cancelled" || code == "canceled" || code == "cancel":
		return StatusCancelled
	case cell == "cancelled" || cell == "canceled":
		return StatusCancelled
	case x.Cancelled.Bool():
		return StatusCancelled
	case strings.Contains(subst, "entf") || strings.Contains(subst, "cancel"):
		return StatusCancelled
	case code == "irregular" || cell == "substitution" ||
		strings.Contains(subst, "vert") || strings.Contains(txt, "vertret"):
		return StatusSubstitution
	case containsAny(subst, "änder", "aender") || containsAny(txt, "änder", "aender"):
		return StatusChanged
	case strings.Contains(txt, "entfall") || strings.Contains(txt, "cancel"):
		return StatusCancelled
	}
	return StatusNormal
}

// isSpecial marks slots that are not a regular lesson: additional periods,
// non-teaching activities, and free-text entries without a subject.
func isSpecial(x rawLesson, subject, note, lessonText string) bool {
	if strings.EqualFold(x.LessonCode.String(), "UNTIS_ADDITIONAL") {
		return true
	}
	if at := x.ActivityType.String(); at != "" && !strings.EqualFold(at, "unterricht") {
		return true
	}
	return subject == "" && (note != "" || lessonText != "")
}

func orZero(v scalar) scalar {
	if v == "" {
		return "0"
	}
	return v
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
