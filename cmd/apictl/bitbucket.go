package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/bitbucket"
	"github.com/Sternrassler/apictl/pkg/output"
)

func newBitbucketCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bitbucket",
		Short: "Bitbucket Cloud repositories, deploy keys and commits",
		Long: `Bitbucket Cloud commands. Credentials come from BITBUCKET_USERNAME and
BITBUCKET_APP_PASSWORD, the config file, or the api.bitbucket.org entry of
~/.netrc. Without credentials only public data is visible.`,
	}
	cmd.AddCommand(
		newBitbucketReposCommand(a),
		newBitbucketDeployKeysCommand(a),
		newBitbucketDeleteDeployKeyCommand(a),
		newBitbucketPruneDeployKeysCommand(a),
		newBitbucketCommitsCommand(a),
	)
	return cmd
}

func (a *app) bitbucketService() (*bitbucket.Service, error) {
	bb := a.cfg.Bitbucket
	creds, err := bitbucket.ResolveCredentials(bb.Username, bb.AppPassword, bb.NetrcPath)
	if err != nil {
		return nil, usageError(err)
	}
	if creds.IsZero() {
		a.logger.Debug().Msg("No Bitbucket credentials found, using anonymous access")
	}
	return bitbucket.NewService(a.client, bb.APIEndpoint, creds, bb.PageLen), nil
}

func newBitbucketReposCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repos WORKSPACE",
		Short: "List all repositories of a workspace",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.bitbucketService()
			if err != nil {
				return err
			}
			return a.export(cmd, bitbucket.RepositoryColumns, func(w output.RecordWriter) error {
				return svc.Repositories(cmd.Context(), args[0], func(r bitbucket.Repository) error {
					return w.Write(r.Record())
				})
			})
		},
	}
}

func newBitbucketDeployKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-keys WORKSPACE REPO...",
		Short: "List the deploy keys of repositories",
		Long: `List the deploy keys of one or more repositories. Each REPO is a repository
slug, file://PATH with one slug per line, or "-" to read slugs from stdin.`,
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := a.resolve("repositories", args[1:])
			if err != nil {
				return err
			}
			svc, err := a.bitbucketService()
			if err != nil {
				return err
			}
			return a.export(cmd, bitbucket.DeployKeyColumns, func(w output.RecordWriter) error {
				workspace := args[0]
				return svc.DeployKeys(cmd.Context(), workspace, repos, func(_ string, key bitbucket.DeployKey) error {
					return w.Write(key.Record(workspace))
				})
			})
		},
	}
}

func newBitbucketDeleteDeployKeyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-deploy-key WORKSPACE REPO ID",
		Short: "Delete one deploy key",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.bitbucketService()
			if err != nil {
				return err
			}
			workspace, repo, id := args[0], args[1], args[2]
			if err := svc.DeleteDeployKey(cmd.Context(), workspace, repo, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "org='%s' repo='%s': Deleted key '%s'\n", workspace, repo, id)
			return nil
		},
	}
}

func newBitbucketPruneDeployKeysCommand(a *app) *cobra.Command {
	var (
		before, after      bool
		creation, lastUsed bool
		dryRun             bool
	)

	cmd := &cobra.Command{
		Use:   "prune-deploy-keys (-b|-a) (-c|-l) WORKSPACE REPO DATETIME",
		Short: "Delete deploy keys created or last used before or after a time",
		Long: `Delete the deploy keys of REPO whose creation or last-used time lies before
(-b) or after (-a) DATETIME. With -c the creation time is compared, with -l the
last-used time; keys never used do not match -l. REPO accepts file://PATH and "-".
DATETIME is parsed leniently; times without a zone are UTC.`,
		Args: usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if before && after {
				return usageError(fmt.Errorf("-b and -a are mutually exclusive"))
			}
			t, err := bitbucket.ParseTime(args[2])
			if err != nil {
				return usageError(err)
			}
			filter := bitbucket.KeyFilter{Creation: creation, LastUsed: lastUsed, Time: t}
			switch {
			case before:
				filter.Direction = bitbucket.Before
			case after:
				filter.Direction = bitbucket.After
			}
			if err := filter.Validate(); err != nil {
				return usageError(err)
			}

			repos, err := a.resolve("repositories", args[1:2])
			if err != nil {
				return err
			}
			svc, err := a.bitbucketService()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return svc.PruneDeployKeys(cmd.Context(), args[0], repos, filter, dryRun, func(action bitbucket.PruneAction) {
				fmt.Fprintln(out, action.String())
			})
		},
	}

	cmd.Flags().BoolVarP(&before, "before", "b", false, "select keys before DATETIME")
	cmd.Flags().BoolVarP(&after, "after", "a", false, "select keys after DATETIME")
	cmd.Flags().BoolVarP(&creation, "creation", "c", false, "compare the creation time")
	cmd.Flags().BoolVarP(&lastUsed, "last-used", "l", false, "compare the last-used time")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report matching keys without deleting them")
	return cmd
}

func newBitbucketCommitsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commits WORKSPACE REPO",
		Short: "List the commits of a repository",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.bitbucketService()
			if err != nil {
				return err
			}
			return a.export(cmd, bitbucket.CommitColumns, func(w output.RecordWriter) error {
				return svc.Commits(cmd.Context(), args[0], args[1], func(c bitbucket.Commit) error {
					return w.Write(c.Record())
				})
			})
		},
	}
}
