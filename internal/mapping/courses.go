package mapping

import (
	"sort"
	"strings"
)

// Course is one selectable course in the profile picker.
type Course struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Courses merges the course mapping with the subjects seen for grade. The
// label is the mapped one, or the first raw spelling when the key is not
// mapped. Sorted by label.
func Courses(courses *Store, seen *Seen, grade string) []Course {
	byKey := make(map[string]string)

	if seen != nil {
		groups := seen.Variants(KindCourses, grade)
		for key, variants := range groups {
			byKey[key] = variants[0]
		}
	}
	if courses != nil {
		for _, e := range courses.Entries() {
			byKey[e.Key] = e.Label
		}
	}

	out := make([]Course, 0, len(byKey))
	for key, label := range byKey {
		out = append(out, Course{Key: key, Label: label})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if a != b {
			return a < b
		}
		return out[i].Key < out[j].Key
	})
	return out
}
