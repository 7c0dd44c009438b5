package mapping

import (
	"sort"
	"strings"
	"sync"

	"github.com/in-nis/untis-back/internal/normalize"
	"github.com/in-nis/untis-back/internal/untis"
)

// pairSep separates subject and room in the suggested-rooms list.
const pairSep = " · "

type labelSet map[string]struct{}

func (s labelSet) add(v string) {
	if v = strings.TrimSpace(v); v != "" {
		s[v] = struct{}{}
	}
}

// Seen remembers the raw subject and room labels of every week served, per
// grade. It feeds the variants view, the courses list and the raw label
// files admins build mappings from.
type Seen struct {
	mu       sync.RWMutex
	subjects map[string]labelSet
	rooms    map[string]labelSet
	pairs    map[string]labelSet
}

func NewSeen() *Seen {
	return &Seen{
		subjects: make(map[string]labelSet),
		rooms:    make(map[string]labelSet),
		pairs:    make(map[string]labelSet),
	}
}

// Record adds the labels of unmapped lessons.
func (s *Seen) Record(grade string, lessons []untis.Lesson) {
	grade = strings.ToUpper(strings.TrimSpace(grade))
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lessons {
		if l.SubjectOriginal != "" && !l.Special {
			set(s.subjects, grade).add(l.SubjectOriginal)
		}
		if room := strings.TrimSpace(l.Room); room != "" {
			set(s.rooms, grade).add(room)
			if subj := strings.TrimSpace(l.SubjectOriginal); subj != "" {
				set(s.pairs, grade).add(subj + pairSep + room)
			} else {
				set(s.pairs, grade).add(room)
			}
		}
	}
}

func set(m map[string]labelSet, grade string) labelSet {
	if m[grade] == nil {
		m[grade] = make(labelSet)
	}
	return m[grade]
}

// Grades lists the grades with recorded labels.
func (s *Seen) Grades() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(labelSet)
	for g := range s.subjects {
		seen.add(g)
	}
	for g := range s.rooms {
		seen.add(g)
	}
	return sortedFold(seen)
}

// Subjects lists the raw subject labels of grade; an empty grade means all.
func (s *Seen) Subjects(grade string) []string { return s.list(s.subjects, grade) }

// Rooms lists the raw room labels of grade; an empty grade means all.
func (s *Seen) Rooms(grade string) []string { return s.list(s.rooms, grade) }

// Pairs lists "subject · room" lines of grade; an empty grade means all.
func (s *Seen) Pairs(grade string) []string { return s.list(s.pairs, grade) }

// Variants groups the labels of kind by canonical key.
func (s *Seen) Variants(kind Kind, grade string) map[string][]string {
	if kind == KindRooms {
		return normalize.GroupVariants(s.Rooms(grade))
	}
	return normalize.GroupVariants(s.Subjects(grade))
}

// Len counts distinct labels across all grades.
func (s *Seen) Len() int {
	return len(s.Subjects("")) + len(s.Rooms(""))
}

func (s *Seen) list(m map[string]labelSet, grade string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grade = strings.ToUpper(strings.TrimSpace(grade))
	merged := make(labelSet)
	for g, labels := range m {
		if grade != "" && g != grade {
			continue
		}
		for v := range labels {
			merged[v] = struct{}{}
		}
	}
	return sortedFold(merged)
}

// sortedFold sorts case-insensitively, ties broken by the exact text.
func sortedFold(set labelSet) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
