// Command apictl lists, exports and manages account resources on Bitbucket,
// CircleCI, GitHub and Jenkins.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/apierrors"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stderr)
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return apierrors.ExitCode(err)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "apictl",
		Short: "Manage resources on source hosting and CI platforms",
		Long: `apictl walks the paginated REST APIs of Bitbucket, CircleCI and GitHub
and exports what it finds as CSV or NDJSON. It also manages deploy and checkout
keys and triggers parameterized Jenkins builds.

List arguments (repositories, projects) accept a literal value, file://PATH
with one value per line, or "-" to read values from stdin.

Exit codes: 0 success, 1 failure, 2 authentication, usage or not found,
3 network error.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	a.bindFlags(root)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newBitbucketCommand(a),
		newCircleCICommand(a),
		newGitHubCommand(a),
		newJenkinsCommand(a),
		newTemplateCommand(a),
	)
	return root
}

// usageError marks err as a command-line usage error.
func usageError(err error) error {
	return fmt.Errorf("%w: %w", apierrors.ErrUsage, err)
}

// usageArgs wraps a positional argument validator so its errors are usage
// errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
