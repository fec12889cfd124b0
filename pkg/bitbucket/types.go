package bitbucket

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Output columns.
var (
	RepositoryColumns = []string{"slug", "name", "created_on", "updated_on", "has_issues", "has_wiki"}
	DeployKeyColumns  = []string{"org", "repo", "id", "type", "created_on", "last_used", "public_key", "comment", "label"}
	CommitColumns     = []string{"hash", "date", "author", "message"}
)

// Repository is a Bitbucket repository.
type Repository struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	CreatedOn string `json:"created_on"`
	UpdatedOn string `json:"updated_on"`
	HasIssues bool   `json:"has_issues"`
	HasWiki   bool   `json:"has_wiki"`
}

// Record returns the row for RepositoryColumns.
func (r Repository) Record() []any {
	return []any{r.Slug, r.Name, r.CreatedOn, r.UpdatedOn, r.HasIssues, r.HasWiki}
}

// DeployKey is an SSH deploy key of a repository.
type DeployKey struct {
	ID         json.Number `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	Label      string      `json:"label"`
	Comment    string      `json:"comment"`
	CreatedOn  *string     `json:"created_on"`
	LastUsed   *string     `json:"last_used"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Record returns the row for DeployKeyColumns. Missing timestamps are null.
func (k DeployKey) Record(workspace string) []any {
	var id any
	if k.ID != "" {
		id = k.ID
	}
	return []any{
		workspace,
		k.Repository.Name,
		id,
		k.Type,
		nullable(k.CreatedOn),
		nullable(k.LastUsed),
		strings.TrimRight(k.Key, " \t\r\n"),
		strings.TrimRight(k.Comment, " \t\r\n"),
		strings.TrimRight(k.Label, " \t\r\n"),
	}
}

// Commit is a repository commit.
type Commit struct {
	Hash    string `json:"hash"`
	Date    string `json:"date"`
	Message string `json:"message"`
	Author  struct {
		Raw  string `json:"raw"`
		User *struct {
			DisplayName string `json:"display_name"`
		} `json:"user"`
	} `json:"author"`
}

// AuthorName returns the raw author string, or the linked user's display name.
func (c Commit) AuthorName() string {
	if c.Author.Raw != "" {
		return c.Author.Raw
	}
	if c.Author.User != nil {
		return c.Author.User.DisplayName
	}
	return ""
}

// Record returns the row for CommitColumns.
func (c Commit) Record() []any {
	return []any{c.Hash, c.Date, c.AuthorName(), strings.TrimRight(c.Message, "\n")}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// decodeItem converts a listing item into v.
func decodeItem(item map[string]any, v any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}
	return nil
}
