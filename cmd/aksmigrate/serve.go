package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/julianshen/aksmigrate/internal/extension"
	"github.com/julianshen/aksmigrate/internal/transport"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Drive the wizard over JSON lines on stdin and stdout",
		Long: "serve reads one action per line from stdin and writes state snapshots " +
			"and notifications to stdout until stdin closes or the process is interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runServe connects one stdio view to a freshly activated extension. Logs go
// to stderr since stdout carries frames.
func runServe(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	sess, err := newSession(errOut)
	if err != nil {
		return err
	}
	defer sess.Close()

	conn := transport.New(in, out, sess.log.With().Str("view", "stdio").Logger())
	ext, err := sess.activate(ctx, extension.Options{Window: conn})
	if err != nil {
		return err
	}
	defer ext.Dispose()

	if err := ext.Hub.Register("stdio", conn); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := conn.Serve(gctx, ext.Dispatcher.Dispatch); err != nil {
			return err
		}
		// Input ended: let the handlers it started finish and publish.
		ext.Dispatcher.Wait()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Stop broadcasting before the extension is disposed and fail any
		// pick still waiting on the view.
		ext.Hub.Unregister("stdio")
		conn.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
