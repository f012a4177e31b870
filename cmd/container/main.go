package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bscript/container/core/invariant"
	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/container"
	_ "github.com/bscript/container/runtime/registry/builtin"
	"github.com/bscript/container/runtime/pubsub"
	"github.com/bscript/container/runtime/store"
)

// Exit codes: a fatal startup error (the container's Initialize failing)
// aborts before run starts waiting for Ctrl-C.
const (
	exitSuccess      = 0
	exitInvalidArgs  = 1
	exitStartupError = 2
)

func main() {
	var (
		bind          string
		spn           string
		timeoutSecs   int
		basePath      string
		dbFile        string
		compress      bool
		compressLevel int
		cacheSize     int64
		sparse        bool
	)

	rootCmd := &cobra.Command{
		Use:           "container",
		Short:         "Run the reactive container service over a pub/sub namespace",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := value.FromAbsolute(basePath)
			if !ok {
				return fmt.Errorf("--base-path must be absolute, got %q", basePath)
			}
			return run(runOptions{
				bind:          bind,
				spn:           spn,
				timeoutSecs:   timeoutSecs,
				basePath:      p,
				dbFile:        dbFile,
				compress:      compress,
				compressLevel: compressLevel,
				cacheSize:     cacheSize,
				sparse:        sparse,
			})
		},
	}

	rootCmd.Flags().StringVar(&bind, "bind", "", "resolver address to publish under")
	rootCmd.Flags().StringVar(&spn, "spn", "", "Kerberos service principal name for the resolver connection")
	rootCmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "publisher batch-commit deadline, in seconds (0 = no deadline)")
	rootCmd.Flags().StringVar(&basePath, "base-path", "/", "root path this container owns")
	rootCmd.Flags().StringVar(&dbFile, "db", "", "path to the on-disk database")
	rootCmd.Flags().BoolVar(&compress, "compress", false, "enable DB compression")
	rootCmd.Flags().IntVar(&compressLevel, "compress-level", 0, "DB compression level")
	rootCmd.Flags().Int64Var(&cacheSize, "cache-size", 0, "DB page cache size, in bytes")
	rootCmd.Flags().BoolVar(&sparse, "sparse", false, "skip advertising existing Data rows at startup")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "container: %v\n", err)
		if _, ok := err.(*startupError); ok {
			os.Exit(exitStartupError)
		}
		os.Exit(exitInvalidArgs)
	}
	os.Exit(exitSuccess)
}

type runOptions struct {
	bind          string
	spn           string
	timeoutSecs   int
	basePath      value.Path
	dbFile        string
	compress      bool
	compressLevel int
	cacheSize     int64
	sparse        bool
}

// startupError marks a fatal failure that happens before the main loop
// runs, distinguishing it from ordinary usage errors for the process
// exit code.
type startupError struct{ error }

// run wires the container's collaborators and blocks until Ctrl-C; the
// fabric and then the container are shut down. There is no DB flush.
// compress/compress-level/cache-size/db are accepted but neither validated
// nor used here; the only DB backing this reference build ships is store.MemDB (see
// DESIGN.md's "disk-backed store" entry for why no on-disk implementation
// is wired).
func run(opts runOptions) error {
	db := store.NewMemDB()
	fabric := pubsub.NewMemFabric()

	c := container.New(opts.basePath, db, fabric, fabric, nil)
	if err := c.Initialize(opts.sparse); err != nil {
		return &startupError{fmt.Errorf("initialize: %w", err)}
	}
	defer c.Shutdown()

	ctx, cancel := newCancellableContext()
	defer cancel()
	invariant.ContextNotBackground(ctx, "run")

	fmt.Fprintf(os.Stderr, "container: serving %s (bind=%q spn=%q)\n", opts.basePath, opts.bind, opts.spn)
	<-ctx.Done()

	fmt.Fprintln(os.Stderr, "container: shutting down")
	fabric.Shutdown()
	return nil
}

// newCancellableContext cancels on SIGINT/SIGTERM, letting Ctrl-C unwind
// the main loop instead of killing the process outright.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}
