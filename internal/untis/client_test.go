package untis

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubLookups(stub *stubTransport) {
	stub.reply("getSubjects", `[{"id":1,"name":"BI","longName":"Biologie"}]`)
	stub.reply("getRooms", `[{"id":2,"name":"R104"}]`)
	stub.reply("getTeachers", `[{"id":3,"name":"Schmidt"}]`)
	stub.reply("getKlassen", `[{"id":7,"name":"EF","longName":"Einführungsphase"}]`)
}

func TestNewClientRejectsIncompleteIdentity(t *testing.T) {
	id := testIdentity("EF")
	id.Password = ""
	_, err := NewClient(id, ClientOptions{Transport: newStub()})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCallAuthenticatedRetriesOnceAfterRelogin(t *testing.T) {
	stub := newStub()
	var sessions []string
	stub.on("getTimetable", func(n int, _ any, creds Credentials) (json.RawMessage, error) {
		sessions = append(sessions, creds.SessionID)
		if n == 1 {
			return nil, notAuthenticated("getTimetable")
		}
		return json.RawMessage(`[]`), nil
	})
	c := newTestClient(t, "EF", stub)

	res, err := c.CallAuthenticated(context.Background(), "getTimetable", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(res))
	assert.Equal(t, 2, stub.count("getTimetable"))
	assert.Equal(t, 2, c.Session().Logins())
	assert.Equal(t, []string{"sess-1", "sess-2"}, sessions)
}

func TestCallAuthenticatedGivesUpAfterSecondRejection(t *testing.T) {
	stub := newStub()
	stub.fail("getTimetable", notAuthenticated("getTimetable"))
	c := newTestClient(t, "EF", stub)

	_, err := c.CallAuthenticated(context.Background(), "getTimetable", nil)
	require.Error(t, err)
	assert.True(t, IsNotAuthenticated(err))
	assert.Equal(t, 2, stub.count("getTimetable"))
	assert.Equal(t, 2, stub.count("authenticate"))
}

func TestCallAuthenticatedDoesNotRetryOtherErrors(t *testing.T) {
	stub := newStub()
	stub.fail("getTimetable", &RPCError{Method: "getTimetable", Code: codeNoRight, Message: "no right for timetable"})
	c := newTestClient(t, "EF", stub)

	_, err := c.CallAuthenticated(context.Background(), "getTimetable", nil)
	assert.True(t, IsPermissionDenied(err))
	assert.Equal(t, 1, stub.count("getTimetable"))
	assert.Equal(t, 1, stub.count("authenticate"))
}

func TestCallAuthenticatedRetriesHTTP401(t *testing.T) {
	stub := newStub()
	stub.on("getSubjects", func(n int, _ any, _ Credentials) (json.RawMessage, error) {
		if n == 1 {
			return nil, &HTTPError{Method: "getSubjects", Status: 401}
		}
		return json.RawMessage(`[]`), nil
	})
	c := newTestClient(t, "EF", stub)

	_, err := c.CallAuthenticated(context.Background(), "getSubjects", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.count("getSubjects"))
}

func TestCallAuthenticatedReturnsLoginFailure(t *testing.T) {
	stub := newStub()
	stub.fail("authenticate", &RPCError{Method: "authenticate", Code: codeBadCredentials, Message: "bad credentials"})
	c := newTestClient(t, "EF", stub)

	_, err := c.CallAuthenticated(context.Background(), "getTimetable", nil)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 0, stub.count("getTimetable"))
}

func TestFetchWeekNormalizesLessons(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	var params any
	stub.on("getTimetable", func(_ int, p any, _ Credentials) (json.RawMessage, error) {
		params = p
		return json.RawMessage(`[{"id":99,"date":20240304,"startTime":935,"endTime":1020,
			"su":[{"id":1}],"ro":[{"id":2}],"te":[{"id":3}]}]`), nil
	})
	c := newTestClient(t, "EF", stub)

	lessons, err := c.FetchWeek(context.Background(), time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lessons, 1)

	assert.Equal(t, Lesson{
		ID:              "99-20240304-935",
		Date:            "2024-03-04",
		Start:           "09:35",
		End:             "10:20",
		Subject:         "Biologie",
		SubjectOriginal: "Biologie",
		Teacher:         "Schmidt",
		Room:            "R104",
		Status:          StatusNormal,
		Grade:           "EF",
	}, lessons[0])

	opts := params.(map[string]any)["options"].(map[string]any)
	assert.Equal(t, 20240304, opts["startDate"])
	assert.Equal(t, 20240310, opts["endDate"])
	assert.Equal(t, map[string]int{"id": 1234, "type": ElementStudent}, opts["element"])
}

func TestFetchWeekSurvivesBrokenRoomLookup(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.fail("getRooms", &RPCError{Method: "getRooms", Code: -8998, Message: "internal"})
	stub.reply("getTimetable", `[{"id":1,"date":20240304,"startTime":800,"endTime":845,
		"su":[{"id":1}],"ro":[{"id":2}],"te":[{"id":3}]}]`)
	c := newTestClient(t, "EF", stub)

	lessons, err := c.FetchWeek(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Biologie", lessons[0].Subject)
	assert.Equal(t, "Schmidt", lessons[0].Teacher)
	assert.Empty(t, lessons[0].Room)
}

func TestFetchWeekSkipsUndecodableEntries(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.reply("getTimetable", `["garbage",{"id":1,"date":{"y":2024},"startTime":800},
		{"id":2,"date":20240305,"startTime":800,"endTime":845,"su":[{"id":1}]}]`)
	c := newTestClient(t, "EF", stub)

	lessons, err := c.FetchWeek(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "2024-03-05", lessons[0].Date)
}

func TestFetchWeekKeepsEntriesWithMalformedReferences(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.reply("getTimetable", `[{"id":1,"date":20240304,"startTime":800,"endTime":845,
		"su":{"oops":true},"te":[{"id":3}],"ro":"R104","kl":[{"id":"7"},{"name":"x"}]}]`)
	c := newTestClient(t, "EF", stub)

	lessons, err := c.FetchWeek(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "2024-03-04", lessons[0].Date)
	assert.Empty(t, lessons[0].SubjectOriginal)
	assert.Equal(t, "Schmidt", lessons[0].Teacher)
	assert.Empty(t, lessons[0].Room)
}

func TestFetchWeekWrapsProviderFailure(t *testing.T) {
	stub := newStub()
	stub.fail("getTimetable", &HTTPError{Method: "getTimetable", Status: 500})
	c := newTestClient(t, "EF", stub)

	_, err := c.FetchWeek(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 500, httpErr.Status)
}

func TestFetchExamsUsesRPCFirst(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.reply("getExams", `[{"id":5,"date":20240311,"startTime":800,"endTime":930,
		"subject":1,"classes":[7],"teachers":[3],"rooms":[2],"name":"Klausur"}]`)
	c := newTestClient(t, "EF", stub)

	exams, err := c.FetchExams(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "5", exams[0].ID)
	assert.Equal(t, "Biologie", exams[0].Subject)
	assert.Equal(t, []string{"EF"}, exams[0].Classes)
	assert.Equal(t, "R104", exams[0].Room)
	assert.Equal(t, 0, stub.count("GET api/exams"))
}

func TestFetchExamsFallsBackToREST(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.fail("getExams", &RPCError{Method: "getExams", Code: -32601, Message: "method not found"})
	var query url.Values
	stub.onGet("api/exams", func(_ int, q url.Values, _ Credentials) (json.RawMessage, error) {
		query = q
		return json.RawMessage(`{"data":{"exams":[{"id":0,"examDate":20240312,"startTime":"8:00","endTime":"9:30",
			"subject":"Mathematik","studentClass":["EF"],"teachers":["Meyer"],"rooms":"R1, R2","examType":"Klausur"}]}}`), nil
	})
	c := newTestClient(t, "EF", stub)

	exams, err := c.FetchExams(context.Background(),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	require.Len(t, exams, 1)

	e := exams[0]
	assert.Equal(t, "2024-03-12_Mathematik_08:00_09:30", e.ID)
	assert.Equal(t, "Klausur", e.Name)
	assert.Equal(t, []string{"R1", "R2"}, e.Rooms)
	assert.Equal(t, "R1, R2", e.Room)

	// Reversed input is swapped before the request is built.
	assert.Equal(t, "20240301", query.Get("startDate"))
	assert.Equal(t, "20240331", query.Get("endDate"))
	assert.Equal(t, "1234", query.Get("studentId"))
	assert.Equal(t, "3", query.Get("examTypeId"))
	assert.Equal(t, "true", query.Get("withGrades"))
}

func TestFetchExamsReturnsFirstErrorWhenBothFail(t *testing.T) {
	stub := newStub()
	stub.fail("getExams", &RPCError{Method: "getExams", Code: codeNoRight, Message: "no right"})
	c := newTestClient(t, "EF", stub)

	_, err := c.FetchExams(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 0)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "getExams", rpcErr.Method)
	assert.Equal(t, 1, stub.count("GET api/exams"))
}

func TestFetchExamsDoesNotLoginTwiceWithBadCredentials(t *testing.T) {
	stub := newStub()
	stub.fail("authenticate", &RPCError{Method: "authenticate", Code: codeBadCredentials, Message: "bad credentials"})
	c := newTestClient(t, "EF", stub)

	_, err := c.FetchExams(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 0)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, stub.count("authenticate"))
	assert.Equal(t, 0, stub.count("GET api/exams"))
}

func TestFetchMapsPropagateErrors(t *testing.T) {
	stub := newStub()
	stubLookups(stub)
	stub.fail("getRooms", &HTTPError{Method: "getRooms", Status: 502})
	c := newTestClient(t, "EF", stub)

	subjects, err := c.FetchSubjectMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "Biologie"}, subjects)

	classes, err := c.FetchClassMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]string{7: "EF"}, classes)

	_, err = c.FetchRoomMap(context.Background())
	assert.Error(t, err)
}
