package circleci

import "strings"

// Output columns.
var (
	EnvVarColumns      = []string{"vcs", "org", "project", "name", "value"}
	CheckoutKeyColumns = []string{"vcs", "org", "project", "key_type", "key_preferred", "key_created_at", "public_key", "key_fingerprint"}
)

// Project identifies a CircleCI project.
type Project struct {
	VCS  string
	Org  string
	Name string
}

// Slug returns the vcs/org/name path of the project.
func (p Project) Slug() string {
	return p.VCS + "/" + p.Org + "/" + p.Name
}

// EnvVar is a project environment variable. Values come back masked.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record returns the row for EnvVarColumns.
func (v EnvVar) Record(p Project) []any {
	return []any{p.VCS, p.Org, p.Name, v.Name, v.Value}
}

// CheckoutKey is an SSH key CircleCI uses to check out a project.
type CheckoutKey struct {
	Type        string `json:"type"`
	Preferred   bool   `json:"preferred"`
	CreatedAt   string `json:"created_at"`
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"fingerprint"`
}

// Record returns the row for CheckoutKeyColumns.
func (k CheckoutKey) Record(p Project) []any {
	return []any{
		p.VCS,
		p.Org,
		p.Name,
		k.Type,
		k.Preferred,
		k.CreatedAt,
		strings.TrimRight(k.PublicKey, " \t\r\n"),
		k.Fingerprint,
	}
}
