// Package main is the tickets command: it validates a barcodes file against
// an orders file, writes the per-order barcode aggregation and reports the
// top customers and unused barcodes. `tickets serve` offers the same
// pipeline over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tickets/internal/app"
	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/config"
	"github.com/JonMunkholm/tickets/internal/logging"
	"github.com/JonMunkholm/tickets/internal/reader"
	"github.com/JonMunkholm/tickets/internal/report"
	"github.com/JonMunkholm/tickets/internal/store"
)

var (
	cfg      *config.Config
	closeLog = func() error { return nil }

	filePath string
	topN     int
	outDir   string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "tickets <barcodes_file> <orders_file>",
	Short: "Validate and aggregate ticket barcodes per order",
	Long: `Reads a barcodes file (barcode,order_id) and an orders file (order_id,customer_id),
drops duplicate barcodes, reports orders without barcodes, and writes
<orders>_<barcodes>_<timestamp>.csv with the barcodes of every order.`,
	Args:              positionalFiles,
	PersistentPreRunE: loadConfig,
	RunE:              runPipeline,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.Flags().StringVarP(&filePath, "file_path", "p", "data", "Directory relative input file names are resolved against")
	rootCmd.Flags().IntVarP(&topN, "top_n", "t", 5, "Number of top customers to report")
	rootCmd.Flags().StringVarP(&outDir, "out_dir", "o", "out", "Directory the aggregated file is written to")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &apperr.ConfigError{Message: "invalid option", Cause: err}
	})
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if cerr := closeLog(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: close error log: %v\n", cerr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apperr.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, apperr.Format(err))
		}
		os.Exit(apperr.ExitCode(err))
	}
}

func positionalFiles(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(2)(cmd, args); err != nil {
		return &apperr.ConfigError{Message: "invalid option: expected <barcodes_file> <orders_file>", Cause: err}
	}
	return nil
}

// loadConfig reads the environment configuration and sets up logging before
// any command runs.
func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return &apperr.ConfigError{Message: "invalid configuration", Cause: err}
	}
	cfg = c

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	closeFn, err := logging.Setup(level, cfg.Logging.Format, cfg.Logging.ErrorFile)
	if err != nil {
		return &apperr.ConfigError{Message: "invalid configuration", Cause: err}
	}
	closeLog = closeFn

	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// runOptions merges the command line over the environment defaults.
func runOptions(cmd *cobra.Command, args []string) config.RunOptions {
	opts := config.RunOptions{
		BarcodesFile: args[0],
		OrdersFile:   args[1],
		FilePath:     cfg.Run.FilePath,
		OutputDir:    cfg.Run.OutputDir,
		TopN:         cfg.Run.TopN,
		Debug:        debug,
	}
	if cmd.Flags().Changed("file_path") {
		opts.FilePath = filePath
	}
	if cmd.Flags().Changed("out_dir") {
		opts.OutputDir = outDir
	}
	if cmd.Flags().Changed("top_n") {
		opts.TopN = topN
	}
	return opts
}

func runPipeline(cmd *cobra.Command, args []string) error {
	resolved, err := runOptions(cmd, args).Resolve()
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	ctx := cmd.Context()

	// Run history is best effort for command line runs.
	var history store.Store
	if st, err := openStore(ctx); err != nil {
		slog.Warn("run history unavailable", "error", err)
	} else {
		history = st
		defer st.Close()
	}

	a := app.New(app.Deps{
		Reader:  reader.NewCSVReader(cfg.Run.MaxFileSize, app.IDColumns...),
		Store:   history,
		Console: report.NewConsole(cmd.OutOrStdout()),
	})

	_, err = a.Run(ctx, app.Inputs{
		BarcodesPath: resolved.BarcodesPath,
		OrdersPath:   resolved.OrdersPath,
		OutputDir:    resolved.OutputDir,
		TopN:         resolved.TopN,
	})
	return err
}

func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN())
}
