// cmd/install.go

package cmd

import (
	"github.com/anvil-sh/anvil/pkg/anvil_cli"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/bootstrap"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/spf13/cobra"
)

var (
	flagForce    bool
	flagSkipDeps bool
	flagDryRun   bool
	flagNoSudo   bool
)

// InstallCmd installs or upgrades the Forge toolkit.
var InstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or upgrade the Forge toolkit",
	Long: `Install detects the platform, checks for an existing installation, installs
missing native dependencies (with your approval), downloads a prebuilt
release or builds from source, and configures the agent service and client
integrations. Re-running against a current installation is a no-op.`,
	RunE: anvil_cli.Wrap(func(rc *anvil_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		env := environment.Detect(rc.Log)

		opts := bootstrap.Options{
			Force: flagForce,
			// --no-sudo implies --skip-deps: without elevation there is no
			// dependency installation to attempt.
			SkipDeps: flagSkipDeps || flagNoSudo,
			DryRun:   flagDryRun,
		}

		return bootstrap.New(env).Run(rc, opts)
	}),
}

func init() {
	InstallCmd.Flags().BoolVar(&flagForce, "force", false,
		"reinstall even if the current version is already present")
	InstallCmd.Flags().BoolVar(&flagSkipDeps, "skip-deps", false,
		"do not check or install native dependencies (no elevation)")
	InstallCmd.Flags().BoolVar(&flagDryRun, "dry-run", false,
		"report what would be done without changing anything")
	InstallCmd.Flags().BoolVar(&flagNoSudo, "no-sudo", false,
		"never invoke sudo (implies --skip-deps)")
}
