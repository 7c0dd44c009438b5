package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/in-nis/untis-back/internal/untis"
)

func testStores(t *testing.T) (*Store, *Store) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("Mathematik GK = Mathe GK\nBiologie = Bio\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.txt"), []byte("R104 = Biolabor\n"), 0o644))
	courses, err := Open(filepath.Join(dir, "c.txt"))
	require.NoError(t, err)
	rooms, err := Open(filepath.Join(dir, "r.txt"))
	require.NoError(t, err)
	return courses, rooms
}

func TestApplyLessons(t *testing.T) {
	courses, rooms := testStores(t)
	in := []untis.Lesson{
		{ID: "b", Date: "2024-03-05", Start: "08:00", Subject: "Mathematik-GK", SubjectOriginal: "Mathematik-GK", Room: "A1"},
		{ID: "a", Date: "2024-03-04", Start: "09:35", Subject: "BIOLOGIE", SubjectOriginal: "BIOLOGIE", Room: "r104"},
		{ID: "s", Date: "2024-03-04", Start: "08:00", Subject: "Studienfahrt", SubjectOriginal: "Biologie", Room: "R104", Special: true},
	}

	out := ApplyLessons(in, courses, rooms)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"s", "a", "b"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "Studienfahrt", out[0].Subject, "special entries keep their text")
	assert.Equal(t, "Biolabor", out[0].Room)
	assert.Equal(t, "Bio", out[1].Subject)
	assert.Equal(t, "BIOLOGIE", out[1].SubjectOriginal)
	assert.Equal(t, "Biolabor", out[1].Room)
	assert.Equal(t, "Mathe GK", out[2].Subject)
	assert.Equal(t, "A1", out[2].Room, "unmapped rooms stay as they are")

	assert.Equal(t, "Mathematik-GK", in[0].Subject, "input is not modified")
}

func TestApplyLessonsWithoutStores(t *testing.T) {
	in := []untis.Lesson{{ID: "x", Subject: "Kunst", SubjectOriginal: "Kunst", Room: "K1"}}
	out := ApplyLessons(in, nil, nil)
	assert.Equal(t, in, out)
}

func TestApplyExams(t *testing.T) {
	courses, rooms := testStores(t)
	in := []untis.Exam{
		{ID: "2", Date: "2024-03-12", Subject: "Biologie", Rooms: []string{"R104", "Aula"}, Room: "R104, Aula"},
		{ID: "1", Date: "2024-03-11", Subject: "Kunst"},
	}

	out := ApplyExams(in, courses, rooms)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "Kunst", out[0].Subject)
	assert.Equal(t, "Bio", out[1].Subject)
	assert.Equal(t, []string{"Biolabor", "Aula"}, out[1].Rooms)
	assert.Equal(t, "Biolabor, Aula", out[1].Room)
	assert.Equal(t, []string{"R104", "Aula"}, in[0].Rooms, "input rooms are not modified")
}
