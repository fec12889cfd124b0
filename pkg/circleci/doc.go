// Package circleci wraps the CircleCI v2 project endpoints for environment
// variables and checkout keys.
//
// Listings carry a next_page_token that is appended to the first URL as the
// page-token query parameter.
package circleci
