// main.go

package main

import (
	"fmt"
	"os"

	"github.com/anvil-sh/anvil/cmd"
	"github.com/anvil-sh/anvil/pkg/logger"
	"github.com/anvil-sh/anvil/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()
	if err := telemetry.Init("anvil"); err != nil {
		fmt.Fprintln(os.Stderr, "Telemetry disabled:", err)
	}

	cmd.Execute()
}
