package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/in-nis/untis-back/internal/untis"
)

var clock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Normalize validates an admin-entered exam.
func (e *ManualExam) Normalize() error {
	e.Grade = strings.ToUpper(strings.TrimSpace(e.Grade))
	e.Subject = strings.TrimSpace(e.Subject)
	if e.Grade == "" {
		return fmt.Errorf("grade is required")
	}
	if e.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("bad date; use YYYY-MM-DD")
	}
	for _, t := range []string{e.Start, e.End} {
		if t != "" && !clock.MatchString(t) {
			return fmt.Errorf("bad time %q; use HH:MM", t)
		}
	}
	return nil
}

// ToExam renders the entry like a provider exam.
func (e ManualExam) ToExam() untis.Exam {
	var rooms []string
	for _, r := range strings.Split(e.Room, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rooms = append(rooms, r)
		}
	}
	var teachers []string
	for _, t := range strings.Split(e.Teachers, ",") {
		if t = strings.TrimSpace(t); t != "" {
			teachers = append(teachers, t)
		}
	}
	return untis.Exam{
		ID:         e.ID,
		Grade:      e.Grade,
		Date:       e.Date,
		Start:      e.Start,
		End:        e.End,
		Subject:    e.Subject,
		ClassIDs:   []int{},
		Classes:    []string{e.Grade},
		TeacherIDs: []int{},
		Teachers:   orEmpty(teachers),
		Name:       e.Name,
		Rooms:      orEmpty(rooms),
		Room:       strings.Join(rooms, ", "),
		Note:       e.Note,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
