// Package bitbucket lists and manages Bitbucket Cloud 2.0 resources:
// repositories, repository deploy keys and commits.
//
// Bitbucket pages carry the absolute URL of the following page in "next"
// and their items in "values", so every listing is an AbsoluteLink walk:
//
//	svc := bitbucket.NewService(apiClient, "https://api.bitbucket.org/2.0", creds, 100)
//	err := svc.Repositories(ctx, "acme", func(r bitbucket.Repository) error {
//		fmt.Println(r.Slug)
//		return nil
//	})
//
// Credentials come from configuration, BITBUCKET_USERNAME /
// BITBUCKET_APP_PASSWORD, or the api.bitbucket.org entry of ~/.netrc.
// Without any, requests are anonymous and only public data is visible.
package bitbucket
