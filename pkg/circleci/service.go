package circleci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/apictl/pkg/apierrors"
	"github.com/Sternrassler/apictl/pkg/client"
	"github.com/Sternrassler/apictl/pkg/logging"
	"github.com/Sternrassler/apictl/pkg/pagination"
)

// DefaultBaseURL is the CircleCI v2 API root.
const DefaultBaseURL = "https://circleci.com/api/v2"

// TokenHeader carries the personal API token.
const TokenHeader = "Circle-Token"

const itemField = "items"

// checkoutKeyType is the only key type the API creates on request.
const checkoutKeyType = "deploy-key"

// ErrNoFingerprint is returned when a created key has no fingerprint.
var ErrNoFingerprint = errors.New("circleci: created key has no fingerprint")

// Service talks to the CircleCI v2 API.
type Service struct {
	client  *client.Client
	baseURL string
	header  http.Header
	batch   pagination.BatchConfig
	logger  zerolog.Logger
}

// NewService creates a Service authenticated with token.
func NewService(c *client.Client, baseURL, token string) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: circleci token is required (set CIRCLE_TOKEN)", apierrors.ErrUnauthorized)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	header := make(http.Header)
	header.Set(TokenHeader, token)

	return &Service{
		client:  c,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  header,
		batch:   pagination.DefaultBatchConfig(),
		logger:  logging.NewLogger("circleci"),
	}, nil
}

func (s *Service) projectURL(p Project, segments ...string) string {
	parts := []string{s.baseURL, "project", url.PathEscape(p.VCS), url.PathEscape(p.Org), url.PathEscape(p.Name)}
	for _, seg := range segments {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}

// walk lists endpoint of every project concurrently and hands the items to fn
// in project order. All per-project failures are returned joined.
func (s *Service) walk(ctx context.Context, projects []Project, endpoint, label string, fn func(Project, map[string]any) error) error {
	sources := make([]pagination.PageSource, len(projects))
	for i, p := range projects {
		sources[i] = pagination.PageSource{
			URL:    s.projectURL(p, endpoint),
			Header: s.header,
			Cursor: pagination.TokenAppend("next_page_token", "page-token"),
		}
	}

	results, fetchErr := pagination.NewBatch(s.client, s.batch, pagination.WithLabel(label)).FetchAll(ctx, sources)

	for i, result := range results {
		p := projects[i]
		if result.Err != nil {
			s.logger.Error().Err(result.Err).Str("project", p.Slug()).Msgf("Failed to list %s", endpoint)
		}
		for _, page := range result.Pages {
			items, ok := page.Items(itemField)
			if !ok {
				s.logger.Warn().Str("project", p.Slug()).Msg("Page has no items, skipping")
				continue
			}
			for _, item := range items {
				if err := fn(p, item); err != nil {
					return err
				}
			}
		}
	}
	return fetchErr
}

// EnvVars calls fn for every environment variable of each project.
func (s *Service) EnvVars(ctx context.Context, projects []Project, fn func(Project, EnvVar) error) error {
	return s.walk(ctx, projects, "envvar", "circleci_envvars", func(p Project, item map[string]any) error {
		var v EnvVar
		if err := decodeItem(item, &v); err != nil {
			return err
		}
		return fn(p, v)
	})
}

// CheckoutKeys calls fn for every checkout key of each project.
func (s *Service) CheckoutKeys(ctx context.Context, projects []Project, fn func(Project, CheckoutKey) error) error {
	return s.walk(ctx, projects, "checkout-key", "circleci_checkout_keys", func(p Project, item map[string]any) error {
		var k CheckoutKey
		if err := decodeItem(item, &k); err != nil {
			return err
		}
		return fn(p, k)
	})
}

// CreateCheckoutKey creates a new deploy key for p.
func (s *Service) CreateCheckoutKey(ctx context.Context, p Project) (CheckoutKey, error) {
	var key CheckoutKey
	body := map[string]string{"type": checkoutKeyType}
	if err := s.client.PostJSON(ctx, s.projectURL(p, "checkout-key"), s.header, body, &key); err != nil {
		return CheckoutKey{}, fmt.Errorf("create checkout key for %s: %w", p.Slug(), err)
	}
	if key.Fingerprint == "" {
		return CheckoutKey{}, fmt.Errorf("%w: project %s", ErrNoFingerprint, p.Slug())
	}
	s.logger.Info().Str("project", p.Slug()).Str("fingerprint", key.Fingerprint).Msg("Created checkout key")
	return key, nil
}

// DeleteCheckoutKey deletes the checkout key with fingerprint from p.
func (s *Service) DeleteCheckoutKey(ctx context.Context, p Project, fingerprint string) error {
	if fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	if err := s.client.Delete(ctx, s.projectURL(p, "checkout-key", fingerprint), s.header); err != nil {
		return fmt.Errorf("delete checkout key %s from %s: %w", fingerprint, p.Slug(), err)
	}
	s.logger.Info().Str("project", p.Slug()).Str("fingerprint", fingerprint).Msg("Deleted checkout key")
	return nil
}

// RotateCheckoutKey deletes the key with fingerprint and creates a new one.
// Nothing is created when the delete fails.
func (s *Service) RotateCheckoutKey(ctx context.Context, p Project, fingerprint string) (CheckoutKey, error) {
	if err := s.DeleteCheckoutKey(ctx, p, fingerprint); err != nil {
		return CheckoutKey{}, err
	}
	return s.CreateCheckoutKey(ctx, p)
}

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
