// Package orghost is a client for a code-hosting organization's REST
// API: team and repository management, pull-request listing and
// summarization, and reconstruction of single-file pull requests that
// only delete lines.
//
// Listings page via an HTTP Link header with rel="next" and are never
// cached; every call re-issues the full paginated fetch.
package orghost

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/c360studio/courseops/rest"
)

// DefaultBaseURL is the API root used when no override is given.
const DefaultBaseURL = "https://api.github.com"

// Organization is a client for one organization, authenticated by a
// personal access token.
type Organization struct {
	name    string
	token   string
	baseURL string
	client  *rest.Client
	logger  *slog.Logger
}

// Option configures an Organization.
type Option func(*Organization)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(o *Organization) {
		o.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithRESTClient sets the underlying REST client.
func WithRESTClient(c *rest.Client) Option {
	return func(o *Organization) {
		o.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Organization) {
		o.logger = logger
	}
}

// New creates an Organization client for the named organization.
func New(name, token string, opts ...Option) *Organization {
	o := &Organization{
		name:    name,
		token:   token,
		baseURL: DefaultBaseURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = rest.NewClient(rest.WithLogger(o.logger))
	}
	return o
}

func (o *Organization) authHeader() http.Header {
	return http.Header{
		"Authorization": []string{"token " + o.token},
		"Accept":        []string{"application/vnd.github.v3+json"},
	}
}

func (o *Organization) orgURL(suffix string) string {
	return o.baseURL + "/orgs/" + o.name + suffix
}

func (o *Organization) repoURL(repo, suffix string) string {
	return o.baseURL + "/repos/" + o.name + "/" + repo + suffix
}

func (o *Organization) teamURL(teamID int64, suffix string) string {
	return fmt.Sprintf("%s/teams/%d%s", o.baseURL, teamID, suffix)
}

// paginate starts a Link-header-paged listing at rawURL.
func (o *Organization) paginate(ctx context.Context, rawURL string, query url.Values) *rest.Pager {
	return o.client.Paginate(ctx, rest.LinkHeader{}, rest.PageCall{
		URL:    rawURL,
		Header: o.authHeader(),
		Query:  query,
	})
}

// Teams lists the organization's teams.
func (o *Organization) Teams(ctx context.Context) *rest.Pager {
	return o.paginate(ctx, o.orgURL("/teams"), nil)
}

// TeamIDsByName returns the team-name to team-id mapping, recomputed
// from the API on every call.
func (o *Organization) TeamIDsByName(ctx context.Context) (map[string]int64, error) {
	teams, err := rest.CollectAs[Team](o.Teams(ctx))
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	ids := make(map[string]int64, len(teams))
	for _, team := range teams {
		ids[team.Name] = team.ID
	}
	return ids, nil
}

// CreateTeam creates an organization team.
func (o *Organization) CreateTeam(ctx context.Context, in TeamInput) (*Team, error) {
	var team Team
	err := o.client.SendJSON(ctx, http.MethodPost, o.orgURL("/teams"), o.authHeader(), in, &team)
	if err != nil {
		return nil, fmt.Errorf("create team %q: %w", in.Name, err)
	}
	o.logger.Info("team created", "org", o.name, "team", team.Name, "id", team.ID)
	return &team, nil
}

// SetTeamMembership adds the named user to a team, or confirms an
// existing membership.
func (o *Organization) SetTeamMembership(ctx context.Context, teamID int64, userName string) error {
	rawURL := o.teamURL(teamID, "/memberships/"+userName)
	err := o.client.SendJSON(ctx, http.MethodPut, rawURL, o.authHeader(), struct{}{}, nil)
	if err != nil {
		return fmt.Errorf("set membership of %q in team %d: %w", userName, teamID, err)
	}
	return nil
}

// Repos lists the organization's repositories.
func (o *Organization) Repos(ctx context.Context) *rest.Pager {
	return o.paginate(ctx, o.orgURL("/repos"), nil)
}

// CreateRepo creates an organization repository.
func (o *Organization) CreateRepo(ctx context.Context, in RepoInput) (*Repo, error) {
	var repo Repo
	err := o.client.SendJSON(ctx, http.MethodPost, o.orgURL("/repos"), o.authHeader(), in, &repo)
	if err != nil {
		return nil, fmt.Errorf("create repo %q: %w", in.Name, err)
	}
	o.logger.Info("repo created", "org", o.name, "repo", repo.Name)
	return &repo, nil
}

// SetRepoTeam grants a team access to a repository.
func (o *Organization) SetRepoTeam(ctx context.Context, teamID int64, repoName string) error {
	rawURL := o.teamURL(teamID, "/repos/"+o.name+"/"+repoName)
	err := o.client.SendJSON(ctx, http.MethodPut, rawURL, o.authHeader(), struct{}{}, nil)
	if err != nil {
		return fmt.Errorf("attach repo %q to team %d: %w", repoName, teamID, err)
	}
	return nil
}

// CreateTeamRepo creates a repository and attaches it to a team. The
// create is not rolled back if the attach fails.
func (o *Organization) CreateTeamRepo(ctx context.Context, in RepoInput, teamID int64) (*Repo, error) {
	repo, err := o.CreateRepo(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := o.SetRepoTeam(ctx, teamID, repo.Name); err != nil {
		return nil, err
	}
	return repo, nil
}

// PullRequests lists a repository's pull requests in every state.
func (o *Organization) PullRequests(ctx context.Context, repo string) *rest.Pager {
	return o.paginate(ctx, o.repoURL(repo, "/pulls"), url.Values{"state": []string{"all"}})
}

// PullRequest fetches one pull request's detail record, which carries
// the changed-file count the listing omits.
func (o *Organization) PullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	rawURL := o.repoURL(repo, fmt.Sprintf("/pulls/%d", number))
	if err := o.client.GetJSON(ctx, rawURL, o.authHeader(), &pr); err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", number, err)
	}
	return &pr, nil
}

// PRAuthors returns the pull-request-number to author mapping for a
// repository.
func (o *Organization) PRAuthors(ctx context.Context, repo string) (map[int]string, error) {
	prs, err := rest.CollectAs[PullRequest](o.PullRequests(ctx, repo))
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}

	authors := make(map[int]string, len(prs))
	for _, pr := range prs {
		authors[pr.Number] = pr.User.Login
	}
	return authors, nil
}

// SummarizePRsByAuthor returns one summary line per pull request,
// grouped by author and ordered by PR number within each author. Each
// line includes the changed-file count, which costs one extra detail
// fetch per pull request. The first failed fetch aborts the rest.
func (o *Organization) SummarizePRsByAuthor(ctx context.Context, repo string) (map[string][]string, error) {
	prs, err := rest.CollectAs[PullRequest](o.PullRequests(ctx, repo))
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].Number < prs[j].Number })

	summaries := make(map[string][]string)
	for _, pr := range prs {
		detail, err := o.PullRequest(ctx, repo, pr.Number)
		if err != nil {
			return summaries, err
		}
		line := fmt.Sprintf("#%d %s (%s, %d changed files)",
			detail.Number, detail.Title, detail.State, detail.ChangedFiles)
		summaries[detail.User.Login] = append(summaries[detail.User.Login], line)
	}
	return summaries, nil
}

// fileContent fetches the decoded content of one file at a ref.
func (o *Organization) fileContent(ctx context.Context, repo, path, ref string) (string, error) {
	var resp struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	rawURL := o.repoURL(repo, "/contents/"+path) + "?ref=" + url.QueryEscape(ref)
	if err := o.client.GetJSON(ctx, rawURL, o.authHeader(), &resp); err != nil {
		return "", fmt.Errorf("get %s at %s: %w", path, ref, err)
	}
	if resp.Encoding != "base64" {
		return "", fmt.Errorf("get %s at %s: unsupported content encoding %q", path, ref, resp.Encoding)
	}

	// The API wraps base64 payloads with embedded newlines.
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, resp.Content)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("decode %s at %s: %w", path, ref, err)
	}
	return string(decoded), nil
}

// RemoveSingleFilePRDeletions reconstructs the single file changed by a
// pull request with its deletions undone: every base-branch line is
// kept, every line the PR adds is kept, and only the PR's deletions are
// discarded. Blank-line runs from the base survive with their exact
// run lengths. The pull request must change exactly one file.
func (o *Organization) RemoveSingleFilePRDeletions(ctx context.Context, repo string, number int) (string, error) {
	pr, err := o.PullRequest(ctx, repo, number)
	if err != nil {
		return "", err
	}
	if pr.ChangedFiles != 1 {
		return "", fmt.Errorf("pull request %d changes %d files, want exactly 1", number, pr.ChangedFiles)
	}

	var files []PRFile
	filesURL := o.repoURL(repo, fmt.Sprintf("/pulls/%d/files", number))
	if err := o.client.GetJSON(ctx, filesURL, o.authHeader(), &files); err != nil {
		return "", fmt.Errorf("list files of pull request %d: %w", number, err)
	}
	if len(files) != 1 {
		return "", fmt.Errorf("pull request %d lists %d files, want exactly 1", number, len(files))
	}
	path := files[0].Filename

	base, err := o.fileContent(ctx, repo, path, pr.Base.SHA)
	if err != nil {
		return "", err
	}
	head, err := o.fileContent(ctx, repo, path, pr.Head.SHA)
	if err != nil {
		return "", err
	}

	return restoreDeletions(base, head), nil
}

// restoreDeletions merges head back over base, keeping every base line
// in place and splicing in head's insertions where the diff puts them.
func restoreDeletions(base, head string) string {
	baseLines := strings.Split(base, "\n")
	headLines := strings.Split(head, "\n")

	matcher := difflib.NewMatcher(baseLines, headLines)

	var merged []string
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e', 'd':
			merged = append(merged, baseLines[op.I1:op.I2]...)
		case 'i':
			merged = append(merged, headLines[op.J1:op.J2]...)
		case 'r':
			merged = append(merged, baseLines[op.I1:op.I2]...)
			merged = append(merged, headLines[op.J1:op.J2]...)
		}
	}
	return strings.Join(merged, "\n")
}
