// pkg/anvil_cli/wrap.go

package anvil_cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/logger"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap ensures panic recovery, signal handling, logging and error
// classification around every command body.
func Wrap(fn func(rc *anvil_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitFallback()

		// SIGINT/SIGTERM cancel the run context so in-flight downloads and
		// subprocesses stop, then the deferred cleanup paths run.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rc := anvil_io.NewContext(ctx, cmd.Name())
		defer rc.End(&err)

		defer func() {
			if r := recover(); r != nil {
				err = cerr.AssertionFailedf("panic: %v", r)
				rc.Log.Error("Panic recovered", zap.Any("panic", r))
			}
		}()

		err = fn(rc, cmd, args)
		if err != nil && !anvil_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
