package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/github"
)

func newGitHubCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "GitHub organization queries",
		Long: `GitHub commands. The token is read from GITHUB_TOKEN or the config file;
set github.api_endpoint for GitHub Enterprise Server.`,
	}
	cmd.AddCommand(newGitHubUsersCommand(a))
	return cmd
}

func newGitHubUsersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users [ORG]",
		Short: "List the members and outside collaborators of an organization",
		Long: `Print the logins of all members and outside collaborators of ORG, one per
line, sorted and without duplicates. ORG defaults to GITHUB_ORG. Listing outside
collaborators usually requires organization owner rights.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			org := os.Getenv("GITHUB_ORG")
			if len(args) == 1 {
				org = args[0]
			}
			if org == "" {
				return usageError(fmt.Errorf("no organization given (argument or GITHUB_ORG)"))
			}

			svc, err := github.NewService(a.client, a.cfg.GitHub.Token, a.cfg.GitHub.APIEndpoint)
			if err != nil {
				return err
			}
			users, err := svc.OrgUsers(cmd.Context(), org)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range users {
				fmt.Fprintln(out, u)
			}
			return nil
		},
	}
}
