// cmd/root.go

package cmd

import (
	"fmt"
	"os"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd is the base command for anvil.
var RootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "Bootstrap installer for the Forge developer toolkit",
	Long: `Anvil installs the Forge toolkit (the forge CLI and the forged agent) onto
this machine: it checks what is already installed, satisfies native build
dependencies, downloads a prebuilt release or builds from source, and sets
up the agent service and client integrations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.AddCommand(InstallCmd)
	RootCmd.AddCommand(StatusCmd)
	RootCmd.AddCommand(VersionCmd)
}

// Execute runs the root command and maps errors to exit codes: expected user
// decisions exit 0, fatal failures exit non-zero.
func Execute() {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
		}
	}()

	if err := RootCmd.Execute(); err != nil {
		if anvil_err.IsExpectedUserError(err) {
			logger.L().Warn("Run ended at user request", zap.Error(err))
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(anvil_err.GetExitCode(err))
	}
}
