package mapping

import (
	"sort"
	"strings"

	"github.com/in-nis/untis-back/internal/normalize"
	"github.com/in-nis/untis-back/internal/untis"
)

func canonical(raw string) string { return normalize.Canonicalize(raw) }

// ApplyLessons returns a copy of lessons with course and room labels
// applied, sorted by date, start and subject. Special entries keep their
// display text; their room is still mapped. Unmapped values are left alone.
func ApplyLessons(lessons []untis.Lesson, courses, rooms *Store) []untis.Lesson {
	out := make([]untis.Lesson, len(lessons))
	for i, l := range lessons {
		if !l.Special && courses != nil {
			if label, ok := courses.Lookup(l.SubjectOriginal); ok {
				l.Subject = label
			}
		}
		if rooms != nil && l.Room != "" {
			l.Room = rooms.Label(l.Room)
		}
		out[i] = l
	}
	SortLessons(out)
	return out
}

// ApplyExams maps exam subjects and rooms the same way ApplyLessons does.
func ApplyExams(exams []untis.Exam, courses, rooms *Store) []untis.Exam {
	out := make([]untis.Exam, len(exams))
	for i, e := range exams {
		if courses != nil {
			e.Subject = courses.Label(e.Subject)
		}
		if rooms != nil && len(e.Rooms) > 0 {
			mapped := make([]string, len(e.Rooms))
			for j, r := range e.Rooms {
				mapped[j] = rooms.Label(r)
			}
			e.Rooms = mapped
			e.Room = strings.Join(mapped, ", ")
		}
		out[i] = e
	}
	untis.SortExams(out)
	return out
}

func SortLessons(lessons []untis.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Subject < b.Subject
	})
}
