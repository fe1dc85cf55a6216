// Command kvs-server runs the kvs network server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/server"
	"github.com/iamNilotpal/kvs/internal/threadpool"
	"github.com/iamNilotpal/kvs/pkg/logger"
	"github.com/iamNilotpal/kvs/pkg/options"
	"github.com/spf13/cobra"
)

func main() {
	var addr string
	var backend string
	var dataDir string

	root := &cobra.Command{
		Use:   "kvs-server",
		Short: "Start a kvs key-value store server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), addr, backend, dataDir)
		},
	}

	root.Flags().StringVar(&addr, "addr", "127.0.0.1:4000", "IP address and port to listen on")
	root.Flags().StringVar(&backend, "engine", "kvs", "storage engine to use (kvs or sled)")
	root.Flags().StringVar(&dataDir, "data-dir", options.DefaultDataDir, "directory to store data files in")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, backend, dataDir string) error {
	log := logger.New("kvs-server")
	defaultOpts := options.NewDefaultOptions()
	options.WithDataDir(dataDir)(&defaultOpts)

	eng, err := engine.Open(ctx, &engine.Config{Options: &defaultOpts, Logger: log}, backend)
	if err != nil {
		return err
	}
	defer eng.Close()

	pool, err := threadpool.NewSharedQueueThreadPool(0)
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	srv := server.New(&server.Config{Engine: eng, Pool: pool, Logger: log})
	log.Infow("starting kvs-server", "addr", addr, "engine", backend, "dataDir", dataDir)

	return srv.ListenAndServe(ctx, addr)
}
