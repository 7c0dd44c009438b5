package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/in-nis/untis-back/internal/untis"
)

func seenFixture() *Seen {
	s := NewSeen()
	s.Record("ef", []untis.Lesson{
		{SubjectOriginal: "Biologie", Room: "R104"},
		{SubjectOriginal: "BIOLOGIE", Room: "R104"},
		{SubjectOriginal: "Mathematik GK", Room: ""},
		{SubjectOriginal: "", Subject: "Sporttag", Special: true, Room: "Halle"},
	})
	s.Record("Q1", []untis.Lesson{
		{SubjectOriginal: "deutsch", Room: "A2"},
		{SubjectOriginal: "Biologie", Room: "R104"},
	})
	return s
}

func TestSeenLists(t *testing.T) {
	s := seenFixture()

	assert.Equal(t, []string{"EF", "Q1"}, s.Grades())
	assert.Equal(t, []string{"BIOLOGIE", "Biologie", "Mathematik GK"}, s.Subjects("EF"))
	assert.Equal(t, []string{"BIOLOGIE", "Biologie", "deutsch", "Mathematik GK"}, s.Subjects(""))
	assert.Equal(t, []string{"Halle", "R104"}, s.Rooms("ef"))
	assert.Equal(t, []string{"BIOLOGIE · R104", "Biologie · R104", "deutsch · A2", "Halle"}, s.Pairs(""))
	assert.Equal(t, 7, s.Len())
}

func TestSeenVariants(t *testing.T) {
	s := seenFixture()
	v := s.Variants(KindCourses, "")
	assert.Equal(t, []string{"BIOLOGIE", "Biologie"}, v["biologie"])
	assert.Equal(t, []string{"Mathematik GK"}, v["mathematik gk"])

	rooms := s.Variants(KindRooms, "Q1")
	assert.Equal(t, map[string][]string{"a2": {"A2"}, "r104": {"R104"}}, rooms)
}

func TestCourses(t *testing.T) {
	courses, _ := testStores(t)
	got := Courses(courses, seenFixture(), "EF")

	assert.Equal(t, []Course{
		{Key: "biologie", Label: "Bio"},
		{Key: "mathematik gk", Label: "Mathe GK"},
	}, got)

	got = Courses(courses, seenFixture(), "Q1")
	assert.Contains(t, got, Course{Key: "deutsch", Label: "deutsch"})
}

func TestExportSeen(t *testing.T) {
	dir := t.TempDir()
	rooms, err := Open(filepath.Join(dir, "rooms_mapping.txt"))
	require.NoError(t, err)

	written, err := ExportSeen(dir, seenFixture(), rooms)
	require.NoError(t, err)
	assert.Len(t, written, 5)

	ef, err := os.ReadFile(filepath.Join(dir, "subjects_raw_ef.txt"))
	require.NoError(t, err)
	assert.Equal(t, "BIOLOGIE\nBiologie\nMathematik GK\n", string(ef))

	pairs, err := os.ReadFile(filepath.Join(dir, "rooms_suggested.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(pairs), "deutsch · A2\n")

	starter, err := os.ReadFile(filepath.Join(dir, "rooms_mapping.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A2 = A2\nHalle = Halle\nR104 = R104\n", string(starter))

	// An existing room mapping is never overwritten.
	_, err = rooms.Set("R104", "Biolabor")
	require.NoError(t, err)
	written, err = ExportSeen(dir, seenFixture(), rooms)
	require.NoError(t, err)
	assert.Len(t, written, 4)
	assert.Equal(t, "Biolabor", rooms.Label("R104"))
}
