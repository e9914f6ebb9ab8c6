package orghost

// Team is one organization team. Unknown response fields are ignored.
type Team struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Permission string `json:"permission"`
}

// TeamInput describes a team to create.
type TeamInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Privacy     string `json:"privacy,omitempty"`
	Permission  string `json:"permission,omitempty"`
}

// Repo is one organization repository.
type Repo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// RepoInput describes a repository to create.
type RepoInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init,omitempty"`
}

// Ref is one end of a pull request.
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest is one pull request. ChangedFiles is populated only by
// the per-PR detail fetch, not by the listing.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Head         Ref `json:"head"`
	Base         Ref `json:"base"`
	ChangedFiles int `json:"changed_files"`
}

// PRFile is one changed file in a pull request.
type PRFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}
