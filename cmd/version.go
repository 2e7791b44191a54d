// cmd/version.go

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// VersionCmd prints the anvil version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the anvil version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("anvil %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	},
}
