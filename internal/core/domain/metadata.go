package domain

// RepoMetadata holds repository attributes. Records are replaced on every
// fetch, never accumulated.
type RepoMetadata struct {
	RepoKey       string   `json:"-"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	Watchers      int      `json:"watchers"`
	Language      string   `json:"language,omitempty"`
	Topics        []string `json:"topics"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	PushedAt      string   `json:"pushed_at,omitempty"`
	DefaultBranch string   `json:"default_branch,omitempty"`
	License       string   `json:"license,omitempty"`
	Description   string   `json:"description,omitempty"`
}
