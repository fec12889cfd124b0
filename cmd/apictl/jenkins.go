package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/jenkins"
)

func newJenkinsCommand(a *app) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "jenkins",
		Short: "Trigger parameterized Jenkins builds",
	}
	cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "USER:TOKEN for basic auth (default JENKINS_USER)")

	jenkinsClient := func() (*jenkins.Client, error) {
		u := a.cfg.Jenkins.User
		if user != "" {
			u = user
		}
		return jenkins.NewClient(a.client, u)
	}

	cmd.AddCommand(
		newJenkinsRunCommand(jenkinsClient),
		newJenkinsTriggerCommand(jenkinsClient),
	)
	return cmd
}

func newJenkinsRunCommand(newClient func() (*jenkins.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run JOBURL PARAMS.json",
		Short: "Run a job, filling required parameters missing from PARAMS.json with N/A",
		Long: `Fetch the parameter definitions of JOBURL, take the values from PARAMS.json,
set every required parameter (one with an empty default) that the file does not
name to N/A, and submit the build.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := newClient()
			if err != nil {
				return err
			}
			params, err := jenkins.LoadParams(args[1])
			if err != nil {
				return usageError(err)
			}
			t, err := jc.RunWithDefaults(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func newJenkinsTriggerCommand(newClient func() (*jenkins.Client, error)) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "trigger SERVER_URL PARAMS.json...",
		Short: "Submit one build per parameter file",
		Long: `Each parameter file is a JSON object of build parameters plus a ` + jenkins.JobURLKey + `
key holding the job path relative to SERVER_URL, for example /job/admin/job/deploy.`,
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = jc.TriggerFromFiles(cmd.Context(), args[0], args[1:], dryRun, func(t jenkins.Trigger) {
				fmt.Fprintln(out, t.String())
			})
			if errors.Is(err, jenkins.ErrNoJobURL) {
				return usageError(err)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the requests without submitting them")
	return cmd
}
