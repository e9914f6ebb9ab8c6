package gradebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/courseops/rest"
)

const (
	testCourseID = "Test-Course-ID"
	testKey      = "app-key"
	testSecret   = "app-secret"
)

func TestNew_BaseURLSchemes(t *testing.T) {
	assert.Equal(t, "https://learn.example.edu",
		New(testCourseID, "learn.example.edu", testKey, testSecret).baseURL)
	assert.Equal(t, "http://localhost:9999",
		New(testCourseID, "http://localhost:9999/", testKey, testSecret).baseURL)
}

// newTestCourse wires a Course at a mock server with the refresh pause
// disabled so token tests run instantly.
func newTestCourse(serverURL string) *Course {
	course := New(testCourseID, serverURL, testKey, testSecret)
	course.pause = func() {}
	return course
}

func tokenHandler(tokens ...string) (http.HandlerFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		token := tokens[min(int(n)-1, len(tokens)-1)]
		fmt.Fprintf(w, `{"access_token": %q, "token_type": "bearer", "expires_in": 3600}`, token)
	}, &calls
}

func TestAPIToken_FetchedOnFirstAccess(t *testing.T) {
	handler, calls := tokenHandler("tok-1")
	mux := http.NewServeMux()
	mux.HandleFunc("/learn/api/public/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, testKey, user)
		assert.Equal(t, testSecret, pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	course := newTestCourse(server.URL)

	token, err := course.apiToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int32(1), calls.Load())
	assert.WithinDuration(t, time.Now().Add(time.Hour), course.tokenExpiry, 5*time.Second)
}

func TestAPIToken_CachedWhileValid(t *testing.T) {
	handler, calls := tokenHandler("tok-1")
	server := httptest.NewServer(handler)
	defer server.Close()

	course := newTestCourse(server.URL)

	for i := 0; i < 3; i++ {
		token, err := course.apiToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIToken_ExpiredTokenRefreshedOnce(t *testing.T) {
	handler, calls := tokenHandler("tok-1", "tok-2")
	server := httptest.NewServer(handler)
	defer server.Close()

	course := newTestCourse(server.URL)

	// Prime the cache, then force it past expiry.
	_, err := course.apiToken(context.Background())
	require.NoError(t, err)
	course.mu.Lock()
	course.tokenExpiry = time.Now().Add(-time.Minute)
	course.mu.Unlock()

	token, err := course.apiToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, int32(2), calls.Load())
}

// courseServer mocks the token endpoint plus one resource route.
func courseServer(t *testing.T, route string, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	tokens, _ := tokenHandler("tok-1")
	mux.HandleFunc("/learn/api/public/v1/oauth2/token", tokens)
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		handler(w, r)
	})
	return httptest.NewServer(mux)
}

func TestColumns_Paged(t *testing.T) {
	var calls atomic.Int32
	var server *httptest.Server
	server = courseServer(t,
		"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns",
		func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.URL.Query().Get("next") == "" {
				fmt.Fprintf(w, `{"results": [{"id": "c1", "name": "Quiz 1"}], "paging": {"nextPage": %q}}`,
					server.URL+"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns?next=101")
				return
			}
			fmt.Fprint(w, `{"results": [{"id": "c2", "name": "Quiz 2"}]}`)
		})
	defer server.Close()

	course := newTestCourse(server.URL)
	pager, err := course.Columns(context.Background())
	require.NoError(t, err)

	columns, err := rest.CollectAs[Column](pager)
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "Quiz 1", columns[0].Name)
	assert.Equal(t, "Quiz 2", columns[1].Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestColumnIDsByName(t *testing.T) {
	server := courseServer(t,
		"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns",
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results": [{"id": "c1", "name": "Quiz 1"}, {"id": "c2", "name": "Quiz 2"}]}`)
		})
	defer server.Close()

	course := newTestCourse(server.URL)
	ids, err := course.ColumnIDsByName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Quiz 1": "c1", "Quiz 2": "c2"}, ids)
}

func TestCreateColumn(t *testing.T) {
	mux := http.NewServeMux()
	tokens, _ := tokenHandler("tok-1")
	mux.HandleFunc("/learn/api/public/v1/oauth2/token", tokens)
	mux.HandleFunc("/learn/api/public/v1/courses/courseId:Test-Course-ID/gradebook/schemas",
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results": [{"id": "s1", "scaleType": "Text"}, {"id": "s2", "scaleType": "Score"}]}`)
		})
	mux.HandleFunc("/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns",
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Week 1 Feedback", body["name"])
			grading := body["grading"].(map[string]any)
			assert.Equal(t, "Manual", grading["type"])
			assert.Equal(t, "s1", grading["schemaId"])
			score := body["score"].(map[string]any)
			assert.Equal(t, float64(0), score["possible"])

			fmt.Fprint(w, `{"id": "c9", "name": "Week 1 Feedback", "availability": {"available": "Yes"}}`)
		})
	server := httptest.NewServer(mux)
	defer server.Close()

	course := newTestCourse(server.URL)
	column, err := course.CreateColumn(context.Background(), ColumnInput{
		Name:    "Week 1 Feedback",
		DueDate: "2018-01-08T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "c9", column.ID)
	assert.Equal(t, "Yes", column.Availability.Available)
}

func TestCreateColumn_NoSchemaSupport(t *testing.T) {
	mux := http.NewServeMux()
	tokens, _ := tokenHandler("tok-1")
	mux.HandleFunc("/learn/api/public/v1/oauth2/token", tokens)
	mux.HandleFunc("/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns",
		func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			grading := body["grading"].(map[string]any)
			_, present := grading["schemaId"]
			assert.False(t, present)
			fmt.Fprint(w, `{"id": "c9"}`)
		})
	// No schemas route: the v1 fetch 404s and the column is created
	// without a schema id.
	server := httptest.NewServer(mux)
	defer server.Close()

	course := newTestCourse(server.URL)
	_, err := course.CreateColumn(context.Background(), ColumnInput{Name: "X", DueDate: "2018-01-08T00:00:00Z"})
	require.NoError(t, err)
}

func TestUserPrimaryID(t *testing.T) {
	server := courseServer(t,
		"/learn/api/public/v1/courses/courseId:Test-Course-ID/users/userName:auser1",
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"userId": "pk-77"}`)
		})
	defer server.Close()

	course := newTestCourse(server.URL)
	id, err := course.UserPrimaryID(context.Background(), "auser1")
	require.NoError(t, err)
	assert.Equal(t, "pk-77", id)
}

func TestSetGrade_OverwriteGuard(t *testing.T) {
	var writes atomic.Int32
	var stored *Grade

	mux := http.NewServeMux()
	tokens, _ := tokenHandler("tok-1")
	mux.HandleFunc("/learn/api/public/v1/oauth2/token", tokens)
	mux.HandleFunc("/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns/c1/users/userName:auser1",
		func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				if stored == nil {
					fmt.Fprint(w, `{"userId": "pk-77", "columnId": "c1"}`)
					return
				}
				require.NoError(t, json.NewEncoder(w).Encode(stored))
			case http.MethodPatch:
				writes.Add(1)
				var body struct {
					Score    string `json:"score"`
					Text     string `json:"text"`
					Feedback string `json:"feedback"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				stored = &Grade{
					UserID:   "pk-77",
					ColumnID: "c1",
					Score:    json.RawMessage(fmt.Sprintf("%q", body.Score)),
					Text:     body.Text,
					Feedback: body.Feedback,
				}
				require.NoError(t, json.NewEncoder(w).Encode(stored))
			default:
				http.Error(w, "method", http.StatusMethodNotAllowed)
			}
		})
	server := httptest.NewServer(mux)
	defer server.Close()

	course := newTestCourse(server.URL)

	// First no-overwrite write lands because no score exists yet.
	first, err := course.SetGrade(context.Background(), "c1", "auser1", GradeInput{Score: "95", Feedback: "Good"}, false)
	require.NoError(t, err)
	assert.True(t, first.HasScore())
	assert.Equal(t, int32(1), writes.Load())

	// Second no-overwrite write is skipped: the first call's grade
	// comes back unchanged and no PATCH is issued.
	second, err := course.SetGrade(context.Background(), "c1", "auser1", GradeInput{Score: "65"}, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), writes.Load())

	// Overwrite forces the write through.
	third, err := course.SetGrade(context.Background(), "c1", "auser1", GradeInput{Score: "65"}, true)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"65"`), third.Score)
	assert.Equal(t, int32(2), writes.Load())
}

func TestSetGradesInColumn_AppliesInOrder(t *testing.T) {
	var order []string
	server := courseServer(t,
		"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns/",
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			order = append(order, r.URL.Path)
			fmt.Fprint(w, `{"score": "1"}`)
		})
	defer server.Close()

	course := newTestCourse(server.URL)
	grades := []UserGrade{
		{UserName: "buser2", Score: "80"},
		{UserName: "auser1", Score: "95", Feedback: "Nice"},
	}
	results, err := course.SetGradesInColumn(context.Background(), "c1", grades, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{
		"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns/c1/users/userName:buser2",
		"/learn/api/public/v2/courses/courseId:Test-Course-ID/gradebook/columns/c1/users/userName:auser1",
	}, order)
}

func TestGradeHasScore(t *testing.T) {
	tests := []struct {
		name  string
		score string
		want  bool
	}{
		{"missing", "", false},
		{"null", "null", false},
		{"empty string", `""`, false},
		{"number", "95", true},
		{"zero", "0", true},
		{"string score", `"95"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Grade{Score: json.RawMessage(tt.score)}
			if tt.score == "" {
				g.Score = nil
			}
			assert.Equal(t, tt.want, g.HasScore())
		})
	}
}
