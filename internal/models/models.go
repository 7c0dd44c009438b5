package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"index"`
	PasswordHash string
	GoogleID     string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Profile *Profile `gorm:"foreignKey:UserID"`
}

// Profile stores the client's personal settings as one JSON document per user.
type Profile struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex;not null"`
	Data      string `gorm:"type:text;not null;default:'{}'"`
	UpdatedAt time.Time

	User User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// ProfileData is the decoded Profile document.
type ProfileData struct {
	Grade   string            `json:"grade"`
	Courses []string          `json:"courses"`
	Exams   []string          `json:"exams"`
	Theme   string            `json:"theme"`
	Colors  map[string]string `json:"colors"`
}

// Normalize fills nil collections so clients always see arrays and objects.
func (p *ProfileData) Normalize() {
	p.Grade = strings.ToUpper(strings.TrimSpace(p.Grade))
	if p.Courses == nil {
		p.Courses = []string{}
	}
	if p.Exams == nil {
		p.Exams = []string{}
	}
	if p.Colors == nil {
		p.Colors = map[string]string{}
	}
}

type Vacation struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"not null" json:"title"`
	StartDate string `gorm:"size:10;not null;index" json:"start_date"`
	EndDate   string `gorm:"size:10;not null" json:"end_date"`
}

// Normalize validates the dates. A missing end means a single day; a
// reversed range is swapped.
func (v *Vacation) Normalize() error {
	v.Title = strings.TrimSpace(v.Title)
	v.StartDate = strings.TrimSpace(v.StartDate)
	v.EndDate = strings.TrimSpace(v.EndDate)

	if v.Title == "" {
		return fmt.Errorf("title is required")
	}
	start, err := time.Parse("2006-01-02", v.StartDate)
	if err != nil {
		return fmt.Errorf("bad start_date; use YYYY-MM-DD")
	}
	if v.EndDate == "" {
		v.EndDate = v.StartDate
	}
	end, err := time.Parse("2006-01-02", v.EndDate)
	if err != nil {
		return fmt.Errorf("bad end_date; use YYYY-MM-DD")
	}
	if end.Before(start) {
		v.StartDate, v.EndDate = v.EndDate, v.StartDate
	}
	return nil
}

// ManualExam is an exam entered by an admin. It is merged into the
// provider's exams for the same grade.
type ManualExam struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Grade     string    `gorm:"size:16;not null;index" json:"grade"`
	Date      string    `gorm:"size:10;not null;index" json:"date"`
	Start     string    `gorm:"size:5" json:"start"`
	End       string    `gorm:"size:5" json:"end"`
	Subject   string    `gorm:"not null" json:"subject"`
	Name      string    `json:"name"`
	Teachers  string    `json:"teachers"`
	Room      string    `json:"room"`
	Note      string    `json:"note"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
