package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/apictl/pkg/client"
	"github.com/Sternrassler/apictl/pkg/logging"
	"github.com/Sternrassler/apictl/pkg/pagination"
)

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

const (
	cursorField = "next"
	itemField   = "values"
)

// Service talks to the Bitbucket Cloud 2.0 API.
type Service struct {
	client  *client.Client
	baseURL string
	header  http.Header
	pageLen int
	batch   pagination.BatchConfig
	logger  zerolog.Logger
}

// NewService creates a Service. pageLen <= 0 leaves the server default.
func NewService(c *client.Client, baseURL string, creds Credentials, pageLen int) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		client:  c,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  creds.Header(),
		pageLen: pageLen,
		batch:   pagination.DefaultBatchConfig(),
		logger:  logging.NewLogger("bitbucket"),
	}
}

// endpoint joins escaped path segments onto the base URL.
func (s *Service) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(escaped, "/")
}

// source returns the page source of a listing endpoint.
func (s *Service) source(segments ...string) pagination.PageSource {
	first := s.endpoint(segments...)
	if s.pageLen > 0 {
		first += "?pagelen=" + strconv.Itoa(s.pageLen)
	}
	return pagination.PageSource{
		URL:    first,
		Header: s.header,
		Cursor: pagination.AbsoluteLink(cursorField),
	}
}

// Repositories calls fn for every repository of workspace.
func (s *Service) Repositories(ctx context.Context, workspace string, fn func(Repository) error) error {
	return pagination.ForEachItem(ctx, s.client, s.source("repositories", workspace), itemField,
		func(item map[string]any) error {
			var repo Repository
			if err := decodeItem(item, &repo); err != nil {
				return err
			}
			return fn(repo)
		},
		pagination.WithLabel("bitbucket_repositories"),
	)
}

// DeployKeys calls fn for every deploy key of each repo, in repo order. Repos
// are fetched concurrently; a failing repo does not stop the others and all
// failures are returned joined.
func (s *Service) DeployKeys(ctx context.Context, workspace string, repos []string, fn func(repo string, key DeployKey) error) error {
	sources := make([]pagination.PageSource, len(repos))
	for i, repo := range repos {
		sources[i] = s.source("repositories", workspace, repo, "deploy-keys")
	}

	batch := pagination.NewBatch(s.client, s.batch, pagination.WithLabel("bitbucket_deploy_keys"))
	results, fetchErr := batch.FetchAll(ctx, sources)

	for i, result := range results {
		repo := repos[i]
		if result.Err != nil {
			s.logger.Error().Err(result.Err).Str("workspace", workspace).Str("repo", repo).Msg("Failed to list deploy keys")
		}
		for _, page := range result.Pages {
			items, ok := page.Items(itemField)
			if !ok {
				s.logger.Warn().Str("repo", repo).Msg("Deploy key page has no values")
				continue
			}
			for _, item := range items {
				var key DeployKey
				if err := decodeItem(item, &key); err != nil {
					return err
				}
				if key.Repository.Name == "" {
					key.Repository.Name = repo
				}
				if err := fn(repo, key); err != nil {
					return err
				}
			}
		}
	}
	return fetchErr
}

// Commits calls fn for every commit of workspace/repo, newest first.
func (s *Service) Commits(ctx context.Context, workspace, repo string, fn func(Commit) error) error {
	return pagination.ForEachItem(ctx, s.client, s.source("repositories", workspace, repo, "commits"), itemField,
		func(item map[string]any) error {
			var c Commit
			if err := decodeItem(item, &c); err != nil {
				return err
			}
			return fn(c)
		},
		pagination.WithLabel("bitbucket_commits"),
	)
}

// DeleteDeployKey deletes deploy key id from workspace/repo.
func (s *Service) DeleteDeployKey(ctx context.Context, workspace, repo, id string) error {
	if id == "" {
		return errors.New("deploy key id cannot be empty")
	}
	if err := s.client.Delete(ctx, s.endpoint("repositories", workspace, repo, "deploy-keys", id), s.header); err != nil {
		return fmt.Errorf("delete deploy key %s from %s/%s: %w", id, workspace, repo, err)
	}
	s.logger.Info().Str("workspace", workspace).Str("repo", repo).Str("id", id).Msg("Deleted deploy key")
	return nil
}
