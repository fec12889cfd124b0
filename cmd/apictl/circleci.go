package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/circleci"
	"github.com/Sternrassler/apictl/pkg/output"
)

func newCircleCICommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circleci",
		Short: "CircleCI project environment variables and checkout keys",
		Long: `CircleCI commands. The API token is read from CIRCLE_TOKEN or the config
file. VCS is the version control slug, for example gh or bb.`,
	}
	cmd.AddCommand(
		newCircleCIEnvVarsCommand(a),
		newCircleCICheckoutKeysCommand(a),
		newCircleCICreateCheckoutKeyCommand(a),
		newCircleCIDeleteCheckoutKeyCommand(a),
		newCircleCIRotateCheckoutKeyCommand(a),
	)
	return cmd
}

func (a *app) circleciService() (*circleci.Service, error) {
	return circleci.NewService(a.client, a.cfg.CircleCI.APIEndpoint, a.cfg.CircleCI.Token)
}

// projects builds the project list from VCS ORG PROJECT... arguments.
func (a *app) projects(args []string) ([]circleci.Project, error) {
	names, err := a.resolve("projects", args[2:])
	if err != nil {
		return nil, err
	}
	projects := make([]circleci.Project, len(names))
	for i, name := range names {
		projects[i] = circleci.Project{VCS: args[0], Org: args[1], Name: name}
	}
	return projects, nil
}

func newCircleCIEnvVarsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "env-vars VCS ORG PROJECT...",
		Short: "List project environment variables (values are masked)",
		Long: `List the environment variables of one or more projects. Each PROJECT is a
project name, file://PATH with one name per line, or "-" to read names from stdin.`,
		Args: usageArgs(cobra.MinimumNArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := a.projects(args)
			if err != nil {
				return err
			}
			svc, err := a.circleciService()
			if err != nil {
				return err
			}
			return a.export(cmd, circleci.EnvVarColumns, func(w output.RecordWriter) error {
				return svc.EnvVars(cmd.Context(), projects, func(p circleci.Project, v circleci.EnvVar) error {
					return w.Write(v.Record(p))
				})
			})
		},
	}
}

func newCircleCICheckoutKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout-keys VCS ORG PROJECT...",
		Short: "List project checkout keys",
		Long: `List the checkout keys of one or more projects. Each PROJECT is a project
name, file://PATH with one name per line, or "-" to read names from stdin.`,
		Args: usageArgs(cobra.MinimumNArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := a.projects(args)
			if err != nil {
				return err
			}
			svc, err := a.circleciService()
			if err != nil {
				return err
			}
			return a.export(cmd, circleci.CheckoutKeyColumns, func(w output.RecordWriter) error {
				return svc.CheckoutKeys(cmd.Context(), projects, func(p circleci.Project, k circleci.CheckoutKey) error {
					return w.Write(k.Record(p))
				})
			})
		},
	}
}

func project(args []string) circleci.Project {
	return circleci.Project{VCS: args[0], Org: args[1], Name: args[2]}
}

func newCircleCICreateCheckoutKeyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-checkout-key VCS ORG PROJECT",
		Short: "Create a deploy key for a project",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.circleciService()
			if err != nil {
				return err
			}
			p := project(args)
			key, err := svc.CreateCheckoutKey(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vcs='%s' org='%s' project='%s': Created key '%s'\n", p.VCS, p.Org, p.Name, key.Fingerprint)
			return nil
		},
	}
}

func newCircleCIDeleteCheckoutKeyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-checkout-key VCS ORG PROJECT FINGERPRINT",
		Short: "Delete a checkout key",
		Args:  usageArgs(cobra.ExactArgs(4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.circleciService()
			if err != nil {
				return err
			}
			p := project(args)
			if err := svc.DeleteCheckoutKey(cmd.Context(), p, args[3]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vcs='%s' org='%s' project='%s': Deleted key '%s'\n", p.VCS, p.Org, p.Name, args[3])
			return nil
		},
	}
}

func newCircleCIRotateCheckoutKeyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-checkout-key VCS ORG PROJECT FINGERPRINT",
		Short: "Delete a checkout key, then create a new deploy key",
		Args:  usageArgs(cobra.ExactArgs(4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.circleciService()
			if err != nil {
				return err
			}
			p := project(args)
			key, err := svc.RotateCheckoutKey(cmd.Context(), p, args[3])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vcs='%s' org='%s' project='%s': Deleted key '%s'\n", p.VCS, p.Org, p.Name, args[3])
			fmt.Fprintf(out, "vcs='%s' org='%s' project='%s': Created key '%s'\n", p.VCS, p.Org, p.Name, key.Fingerprint)
			return nil
		},
	}
}
