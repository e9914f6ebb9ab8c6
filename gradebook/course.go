// Package gradebook implements a client for a course-scoped LMS
// gradebook REST API: OAuth2 client-credential tokens, column CRUD, and
// grade reads/writes with an optional overwrite guard.
package gradebook

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/c360studio/courseops/rest"
)

// Course is a client scoped to one course on one LMS instance. Each
// Course owns its own API token; nothing is shared across instances.
type Course struct {
	courseID          string
	baseURL           string
	applicationKey    string
	applicationSecret string

	client *rest.Client
	logger *slog.Logger

	// Token state machine: Absent -> Valid -> (near expiry) -> Absent.
	// The mutex makes the read-that-writes accessor explicit about its
	// critical section; two goroutines racing past an expired token may
	// still both re-request, which is an accepted race, not a bug.
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now   func() time.Time
	pause func()
}

// Option configures a Course.
type Option func(*Course)

// WithRESTClient sets the underlying REST client.
func WithRESTClient(c *rest.Client) Option {
	return func(course *Course) {
		course.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(course *Course) {
		course.logger = logger
	}
}

// New creates a Course client. serverAddress may be bare ("host:port")
// or carry a scheme; a bare address is reached over HTTPS.
func New(courseID, serverAddress, applicationKey, applicationSecret string, opts ...Option) *Course {
	c := &Course{
		courseID:          courseID,
		baseURL:           rest.NormalizeBaseURL(serverAddress),
		applicationKey:    applicationKey,
		applicationSecret: applicationSecret,
		client:            rest.NewClient(),
		logger:            slog.Default(),
		now:               time.Now,
		pause:             func() { time.Sleep(time.Second) },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// tokenResponse is the client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// apiToken returns a valid bearer token, fetching or refreshing as
// needed. A token with one second or less of validity left is discarded;
// the refresh pauses briefly first so a burst of callers cannot hammer
// the token endpoint, then blocks until the new token arrives.
func (c *Course) apiToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenLocked(ctx)
}

func (c *Course) tokenLocked(ctx context.Context) (string, error) {
	if c.token == "" {
		var resp tokenResponse
		basic := base64.StdEncoding.EncodeToString([]byte(c.applicationKey + ":" + c.applicationSecret))
		header := http.Header{"Authorization": []string{"Basic " + basic}}
		err := c.client.PostForm(ctx, c.baseURL+"/learn/api/public/v1/oauth2/token", header,
			url.Values{"grant_type": []string{"client_credentials"}}, &resp)
		if err != nil {
			return "", fmt.Errorf("request API token: %w", err)
		}
		c.token = resp.AccessToken
		c.tokenExpiry = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		c.logger.Debug("Fetched API token", "course_id", c.courseID, "expires_in", resp.ExpiresIn)
	}

	if c.tokenExpiry.Sub(c.now()) <= time.Second {
		c.token = ""
		c.pause()
		return c.tokenLocked(ctx)
	}

	return c.token, nil
}

// authHeader builds the bearer-token header for one request.
func (c *Course) authHeader(ctx context.Context) (http.Header, error) {
	token, err := c.apiToken(ctx)
	if err != nil {
		return nil, err
	}
	return http.Header{"Authorization": []string{"Bearer " + token}}, nil
}

func (c *Course) courseURL(version, suffix string) string {
	return fmt.Sprintf("%s/learn/api/public/%s/courses/courseId:%s%s", c.baseURL, version, c.courseID, suffix)
}

// Columns returns a lazy pager over the course's gradebook columns.
// Nothing is cached: every call re-issues the full paginated fetch.
func (c *Course) Columns(ctx context.Context) (*rest.Pager, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	return c.client.Paginate(ctx, rest.BodyCursor{}, rest.PageCall{
		URL:    c.courseURL("v2", "/gradebook/columns"),
		Header: header,
	}), nil
}

// ColumnIDsByName maps column display names to their primary ids,
// recomputed from the API on every call.
func (c *Course) ColumnIDsByName(ctx context.Context) (map[string]string, error) {
	pager, err := c.Columns(ctx)
	if err != nil {
		return nil, err
	}
	columns, err := rest.CollectAs[Column](pager)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(columns))
	for _, column := range columns {
		ids[column.Name] = column.ID
	}
	return ids, nil
}

// Schemas returns a lazy pager over the course's grading schemas.
func (c *Course) Schemas(ctx context.Context) (*rest.Pager, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	return c.client.Paginate(ctx, rest.BodyCursor{}, rest.PageCall{
		URL:    c.courseURL("v1", "/gradebook/schemas"),
		Header: header,
	}), nil
}

// SchemaIDsByScaleType maps grading schema scale types to their primary
// ids, recomputed on every call.
func (c *Course) SchemaIDsByScaleType(ctx context.Context) (map[string]string, error) {
	pager, err := c.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	schemas, err := rest.CollectAs[Schema](pager)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(schemas))
	for _, schema := range schemas {
		ids[schema.ScaleType] = schema.ID
	}
	return ids, nil
}

// CreateColumn creates a gradebook column. Zero-valued input fields take
// the documented defaults; a max score of 0 is the convention for "do
// not display a maximum score".
func (c *Course) CreateColumn(ctx context.Context, in ColumnInput) (*Column, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}

	in.applyDefaults()

	// Servers without grading-schema support simply get no schemaId.
	var schemaID string
	if ids, err := c.SchemaIDsByScaleType(ctx); err != nil {
		c.logger.Debug("Grading schemas unavailable", "error", err)
	} else {
		schemaID = ids[in.ScaleType]
	}

	body := createColumnRequest{
		Name:        in.Name,
		Description: in.Description,
	}
	body.Score.Possible = in.MaxScorePossible
	body.Availability.Available = in.AvailableToStudents
	body.Grading.Type = in.GradingType
	body.Grading.Due = in.DueDate
	body.Grading.SchemaID = schemaID

	var column Column
	err = c.client.SendJSON(ctx, http.MethodPost, c.courseURL("v2", "/gradebook/columns"), header, body, &column)
	if err != nil {
		return nil, err
	}
	return &column, nil
}

// UserPrimaryID resolves a course user's primary id, returning "" when
// the response carries none.
func (c *Course) UserPrimaryID(ctx context.Context, userName string) (string, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return "", err
	}
	var resp struct {
		UserID string `json:"userId"`
	}
	err = c.client.GetJSON(ctx, c.courseURL("v1", "/users/userName:"+userName), header, &resp)
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// GetGrade fetches one user's grade in a column.
func (c *Course) GetGrade(ctx context.Context, columnID, userName string) (*Grade, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	var grade Grade
	err = c.client.GetJSON(ctx, c.gradeURL(columnID, userName), header, &grade)
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// Grades returns a lazy pager over all grades in a column.
func (c *Course) Grades(ctx context.Context, columnID string) (*rest.Pager, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	return c.client.Paginate(ctx, rest.BodyCursor{}, rest.PageCall{
		URL:    c.courseURL("v2", "/gradebook/columns/"+columnID+"/users"),
		Header: header,
	}), nil
}

// SetGrade writes one user's grade as score/text/feedback. With
// overwrite disabled it first fetches the existing grade and, when that
// grade already has a score, returns it unchanged without writing. An
// empty or missing score counts as "not graded" — including a grade
// explicitly recorded as the empty string. The read-then-maybe-write is
// unlocked; concurrent writers can race.
func (c *Course) SetGrade(ctx context.Context, columnID, userName string, in GradeInput, overwrite bool) (*Grade, error) {
	if !overwrite {
		current, err := c.GetGrade(ctx, columnID, userName)
		if err != nil {
			return nil, err
		}
		if current.HasScore() {
			return current, nil
		}
	}

	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]string{
		"score":    in.Score,
		"text":     in.Text,
		"feedback": in.Feedback,
	}
	var grade Grade
	err = c.client.SendJSON(ctx, http.MethodPatch, c.gradeURL(columnID, userName), header, body, &grade)
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// SetGradesInColumn applies SetGrade once per entry, in slice order.
// Each write is an independent HTTP call: a failure partway through
// leaves earlier writes committed and aborts the rest.
func (c *Course) SetGradesInColumn(ctx context.Context, columnID string, grades []UserGrade, overwrite bool) ([]*Grade, error) {
	results := make([]*Grade, 0, len(grades))
	for _, g := range grades {
		grade, err := c.SetGrade(ctx, columnID, g.UserName, GradeInput{
			Score:    g.Score,
			Text:     g.Text,
			Feedback: g.Feedback,
		}, overwrite)
		if err != nil {
			return results, fmt.Errorf("set grade for %q: %w", g.UserName, err)
		}
		results = append(results, grade)
	}
	return results, nil
}

func (c *Course) gradeURL(columnID, userName string) string {
	return c.courseURL("v2", "/gradebook/columns/"+columnID+"/users/userName:"+userName)
}
