// Package github lists organization users through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	gh "github.com/google/go-github/v68/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/Sternrassler/apictl/pkg/apierrors"
	"github.com/Sternrassler/apictl/pkg/client"
	"github.com/Sternrassler/apictl/pkg/logging"
)

const perPage = 100

// Service wraps a go-github client whose requests go through the shared API
// client.
type Service struct {
	gh     *gh.Client
	logger zerolog.Logger
}

// NewService creates a Service authenticated with token. A non-empty
// enterpriseURL points it at a GitHub Enterprise Server.
func NewService(c *client.Client, token, enterpriseURL string) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: github token is required (set GITHUB_TOKEN)", apierrors.ErrUnauthorized)
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   c.Transport(),
		},
	}

	ghClient := gh.NewClient(httpClient)
	if enterpriseURL != "" {
		var err error
		ghClient, err = ghClient.WithEnterpriseURLs(enterpriseURL, enterpriseURL)
		if err != nil {
			return nil, fmt.Errorf("github enterprise url: %w", err)
		}
	}

	return &Service{
		gh:     ghClient,
		logger: logging.NewLogger("github"),
	}, nil
}

// OrgUsers returns the sorted, de-duplicated logins of the members and outside
// collaborators of org. Listing outside collaborators usually needs org admin
// rights.
func (s *Service) OrgUsers(ctx context.Context, org string) ([]string, error) {
	if org == "" {
		return nil, fmt.Errorf("%w: organization is required", apierrors.ErrUsage)
	}

	seen := make(map[string]struct{})
	add := func(users []*gh.User) {
		for _, u := range users {
			if login := u.GetLogin(); login != "" {
				seen[login] = struct{}{}
			}
		}
	}

	memberOpts := &gh.ListMembersOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		users, resp, err := s.gh.Organizations.ListMembers(ctx, org, memberOpts)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", org, mapError(err))
		}
		add(users)
		if resp.NextPage == 0 {
			break
		}
		memberOpts.Page = resp.NextPage
	}
	members := len(seen)

	collabOpts := &gh.ListOutsideCollaboratorsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		users, resp, err := s.gh.Organizations.ListOutsideCollaborators(ctx, org, collabOpts)
		if err != nil {
			return nil, fmt.Errorf("list outside collaborators of %s: %w", org, mapError(err))
		}
		add(users)
		if resp.NextPage == 0 {
			break
		}
		collabOpts.Page = resp.NextPage
	}

	logins := make([]string, 0, len(seen))
	for login := range seen {
		logins = append(logins, login)
	}
	slices.Sort(logins)

	s.logger.Debug().
		Str("org", org).
		Int("members", members).
		Int("total", len(logins)).
		Msg("Listed organization users")

	return logins, nil
}

// mapError attaches the shared sentinel matching a go-github error.
func mapError(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %w", apierrors.ErrRateLimited, err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %w", apierrors.ErrRateLimited, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", apierrors.ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", apierrors.ErrNotFound, err)
		}
	}
	return err
}
