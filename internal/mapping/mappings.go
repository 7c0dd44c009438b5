package mapping

import (
	"fmt"
	"path/filepath"
)

// Mappings bundles the course and room stores kept in the data directory.
type Mappings struct {
	Courses *Store
	Rooms   *Store
}

// OpenDir loads both mapping files from dir.
func OpenDir(dir, courseFile, roomFile string) (*Mappings, error) {
	courses, err := Open(filepath.Join(dir, courseFile))
	if err != nil {
		return nil, err
	}
	rooms, err := Open(filepath.Join(dir, roomFile))
	if err != nil {
		return nil, err
	}
	return &Mappings{Courses: courses, Rooms: rooms}, nil
}

func (m *Mappings) Store(kind Kind) (*Store, error) {
	switch kind {
	case KindCourses:
		return m.Courses, nil
	case KindRooms:
		return m.Rooms, nil
	}
	return nil, fmt.Errorf("unknown mapping kind %q", kind)
}

// Explained is one raw label with the key and label it resolves to.
type Explained struct {
	Raw    string `json:"raw"`
	Key    string `json:"key"`
	Label  string `json:"label"`
	Mapped bool   `json:"mapped"`
}

// Explain resolves each raw label against s.
func (s *Store) Explain(raws []string) []Explained {
	out := make([]Explained, 0, len(raws))
	for _, raw := range raws {
		label, ok := s.Lookup(raw)
		if !ok {
			label = raw
		}
		out = append(out, Explained{Raw: raw, Key: canonical(raw), Label: label, Mapped: ok})
	}
	return out
}
