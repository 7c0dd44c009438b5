package untis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var examLookups = Lookups{
	Subjects: map[int]string{1: "Biologie"},
	Teachers: map[int]string{3: "Schmidt"},
	Rooms:    map[int]string{2: "R104", 4: "R105"},
	Classes:  map[int]string{7: "EF"},
}

func TestDecodeExamPicksVariant(t *testing.T) {
	cases := map[string]struct {
		body string
		rest bool
	}{
		"rpc ids":          {`{"id":1,"date":20240311,"startTime":800,"classes":[7]}`, false},
		"rest examDate":    {`{"id":1,"examDate":20240311}`, true},
		"rest class names": {`{"id":1,"date":20240311,"studentClass":["EF"]}`, true},
		"rest text time":   {`{"id":1,"date":20240311,"startTime":"08:00"}`, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			x, err := decodeExam(json.RawMessage(tc.body))
			require.NoError(t, err)
			_, isRest := x.(restExam)
			assert.Equal(t, tc.rest, isRest)
		})
	}
}

func TestBothVariantsNormalizeAlike(t *testing.T) {
	rpc := `[{"id":11,"date":20240311,"startTime":800,"endTime":930,"subject":1,
		"classes":[7],"teachers":[3],"rooms":[2,4],"name":"Klausur"}]`
	rest := `{"exams":[{"id":11,"examDate":"20240311","startTime":"8:00","endTime":"9:30","subjectId":1,
		"studentClass":[{"id":7,"name":"EF"}],"teachers":["Schmidt"],"rooms":"R104; R105","name":"Klausur"}]}`

	fromRPC, err := normalizeExams(json.RawMessage(rpc), examLookups, "EF")
	require.NoError(t, err)
	fromREST, err := normalizeExams(json.RawMessage(rest), examLookups, "EF")
	require.NoError(t, err)
	require.Len(t, fromRPC, 1)
	require.Len(t, fromREST, 1)

	a, b := fromRPC[0], fromREST[0]
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "2024-03-11", a.Date)
	assert.Equal(t, a.Date, b.Date)
	assert.Equal(t, "08:00", b.Start)
	assert.Equal(t, a.Start, b.Start)
	assert.Equal(t, a.End, b.End)
	assert.Equal(t, "Biologie", b.Subject)
	assert.Equal(t, a.Subject, b.Subject)
	assert.Equal(t, a.SubjectID, b.SubjectID)
	assert.Equal(t, a.Classes, b.Classes)
	assert.Equal(t, a.Teachers, b.Teachers)
	assert.Equal(t, []string{"R104", "R105"}, b.Rooms)
	assert.Equal(t, a.Rooms, b.Rooms)
	assert.Equal(t, "R104, R105", a.Room)
}

func TestNormalizeExamsSynthesizesStableIDs(t *testing.T) {
	body := `[{"examDate":20240311,"startTime":"08:00","endTime":"09:30","subject":"Deutsch"},
		{"id":null,"examDate":20240311,"startTime":"08:00","endTime":"09:30","subject":"Deutsch"}]`

	first, err := normalizeExams(json.RawMessage(body), examLookups, "EF")
	require.NoError(t, err)
	second, err := normalizeExams(json.RawMessage(body), examLookups, "EF")
	require.NoError(t, err)

	require.Len(t, first, 1, "duplicates collapse on the synthesized id")
	assert.Equal(t, "2024-03-11_Deutsch_08:00_09:30", first[0].ID)
	assert.Equal(t, first, second)
}

func TestNormalizeExamsDropsUndatedAndSorts(t *testing.T) {
	body := `{"data":{"exams":[
		{"id":3,"date":20240320,"startTime":800,"subject":1},
		{"id":4,"date":"soon","startTime":800,"subject":1},
		{"id":5,"startTime":800,"subject":1},
		{"id":6,"date":20240312,"startTime":1000,"subject":1},
		{"id":7,"date":20240312,"startTime":800,"subject":1},
		"not an object"
	]}}`

	exams, err := normalizeExams(json.RawMessage(body), examLookups, "Q1")
	require.NoError(t, err)

	ids := make([]string, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.ID)
		assert.Equal(t, "Q1", e.Grade)
	}
	assert.Equal(t, []string{"7", "6", "3"}, ids)
}

func TestNormalizeExamsEmptyPayloads(t *testing.T) {
	for _, body := range []string{`null`, `[]`, `{}`, `{"data":{}}`} {
		exams, err := normalizeExams(json.RawMessage(body), examLookups, "EF")
		require.NoError(t, err, body)
		assert.Empty(t, exams, body)
	}
	_, err := normalizeExams(json.RawMessage(`42`), examLookups, "EF")
	assert.Error(t, err)
}

func TestFlexList(t *testing.T) {
	cases := []struct {
		body  string
		ids   []int
		names []string
	}{
		{`null`, nil, nil},
		{`"A, B; C"`, nil, []string{"A", "B", "C"}},
		{`7`, []int{7}, nil},
		{`[7, 8.0]`, []int{7}, nil},
		{`["Meyer", " "]`, nil, []string{"Meyer"}},
		{`[{"id":3},{"id":4,"longName":"Raum 4","name":"R4"}]`, []int{3}, []string{"Raum 4"}},
	}
	for _, tc := range cases {
		var f flexList
		require.NoError(t, json.Unmarshal([]byte(tc.body), &f), tc.body)
		assert.Equal(t, tc.ids, f.IDs, tc.body)
		assert.Equal(t, tc.names, f.Names, tc.body)
	}
}

func TestFlexListResolve(t *testing.T) {
	f := flexList{IDs: []int{2, 99}, Names: []string{"Aula"}}
	ids, names := f.resolve(examLookups.Rooms)
	assert.Equal(t, []int{2, 99}, ids)
	assert.Equal(t, []string{"Aula", "R104"}, names)
}
