// cmd/status.go

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_cli"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/inspect"
	"github.com/anvil-sh/anvil/pkg/verify"
	"github.com/spf13/cobra"
)

// StatusCmd reports the installed Forge tools and agent state. Read-only.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installed Forge tools and agent state",
	RunE: anvil_cli.Wrap(func(rc *anvil_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		env := environment.Detect(rc.Log)

		existing, err := inspect.Inspect(rc, env.InstallDir, []string{"forge", "forged"}, verify.ExecProber{})
		if err != nil {
			return err
		}

		for _, tool := range existing.Tools {
			if !tool.Present {
				fmt.Printf("%-8s not installed\n", tool.Name)
				continue
			}
			version := "unknown"
			if tool.Version != nil {
				version = tool.Version.String()
			}
			fmt.Printf("%-8s %s (%s)\n", tool.Name, version, tool.Path)

			if tool.Name == "forge" {
				out, err := execute.Run(rc.Ctx, execute.Options{
					Command: tool.Path,
					Args:    []string{"agent", "status"},
					Capture: true,
					Timeout: 30 * time.Second,
				})
				if err != nil {
					fmt.Println("agent    not running")
				} else {
					fmt.Printf("agent    %s\n", strings.TrimSpace(out))
				}
			}
		}
		return nil
	}),
}
