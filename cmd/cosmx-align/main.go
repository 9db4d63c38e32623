package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/cosmx-align/internal/align"
	"github.com/ironsheep/cosmx-align/internal/config"
	"github.com/ironsheep/cosmx-align/internal/logger"
	"github.com/ironsheep/cosmx-align/internal/pipeline"
	"github.com/ironsheep/cosmx-align/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultConfigName = "cosmx-align.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	dataDir     string
	slideID     string
	all         bool
	mode        string
	refine      bool
	debug       bool
	maxSize     int
	workers     int
	configPath  string
	metricsFile string
	logLevel    string
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("cosmx-align", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.dataDir, "data", ".", "data directory holding slides/, cosmx/ and cosmx_tiles/")
	fs.StringVar(&o.slideID, "slide", "", "align a single slide by id")
	fs.BoolVar(&o.all, "all", false, "align every slide with a CosMx image")
	fs.StringVar(&o.mode, "mode", "auto", "coverage mode: auto, full or partial")
	fs.BoolVar(&o.refine, "refine", false, "refine the translation of the best candidate")
	fs.BoolVar(&o.debug, "debug", false, "write the alignment overlay next to each record")
	fs.IntVar(&o.maxSize, "max-size", 0, "longer side of the working images in pixels (default from config, 1024)")
	fs.IntVar(&o.workers, "workers", -1, "parallel orientation trials; 0 uses every CPU (default from config)")
	fs.StringVar(&o.configPath, "config", "", "YAML config file; defaults apply when absent")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus text-format metrics to this file")
	fs.StringVar(&o.logLevel, "log-level", os.Getenv("COSMX_ALIGN_LOG_LEVEL"), "log level: debug, info or error")
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	serve := false
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Fprintf(stdout, "cosmx-align %s\n", Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
			return 0
		case "--help", "-h", "help":
			printHelp(stdout)
			return 0
		case "init-config":
			path := defaultConfigName
			if len(args) > 1 {
				path = args[1]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Fprintf(stdout, "Wrote default configuration to %s\n", path)
			return 0
		case "serve":
			serve = true
			args = args[1:]
		}
	}

	var o options
	fs := newFlagSet(&o, stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Logging goes to stderr (stdout is for results and the MCP protocol)
	log.SetOutput(stderr)
	log.SetFlags(log.Ldate | log.Ltime)
	lg := logger.NewStdErrLogger(logger.ParseLogLevel(o.logLevel))
	lg.Debugf("cosmx-align %s (built %s, commit %s)", Version, BuildTime, GitCommit)

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	mode, err := align.ParseMode(o.mode)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var metrics *pipeline.Metrics
	if cfg.Output.MetricsFile != "" {
		metrics = pipeline.NewMetrics()
	}
	runner := pipeline.NewRunner(pipeline.NewLayout(o.dataDir), cfg, lg, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		server.Version = Version
		srv := server.New(runner, lg)
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			lg.Errorf("Server error: %v", err)
			return 1
		}
		return 0
	}

	runOpts := pipeline.RunOptions{Mode: mode, Refine: o.refine, Debug: o.debug}
	var code int
	switch {
	case o.slideID != "":
		code = runSlide(ctx, runner, o.slideID, runOpts, stdout, lg)
	case o.all:
		code = runAll(ctx, runner, runOpts, stdout, lg)
	default:
		fmt.Fprintln(stderr, "Error: specify -slide ID or -all (or run 'cosmx-align help')")
		return 2
	}

	if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
		lg.Errorf("metrics: %v", err)
		return 1
	}
	return code
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.maxSize > 0 {
		cfg.Processing.MaxSize = o.maxSize
	}
	if o.workers >= 0 {
		cfg.Processing.Workers = o.workers
	}
	if o.debug {
		cfg.Output.Debug = true
	}
	if o.metricsFile != "" {
		cfg.Output.MetricsFile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSlide(ctx context.Context, runner *pipeline.Runner, id string, opts pipeline.RunOptions, stdout io.Writer, lg logger.ILogger) int {
	o, err := runner.RunSlide(ctx, id, opts)
	if err != nil {
		lg.Errorf("%s: %v", id, err)
		return 1
	}
	if o.Status == pipeline.StatusSkipped {
		fmt.Fprintf(stdout, "Skipped %s: %s\n", id, o.Reason)
		return 1
	}

	t := o.Record.Transform
	fmt.Fprintf(stdout, "%s: rotation=%d flip_x=%t flip_y=%t scale=%.3f translate=(%d,%d) score=%.4f mode=%s\n",
		id, t.Rotation, t.FlipX, t.FlipY, t.Scale, t.TranslateXPx, t.TranslateYPx, o.Score, o.Record.CoverageMode)
	fmt.Fprintf(stdout, "Wrote %s\n", runner.Layout().TransformPath(id))
	if o.NeedsReview {
		fmt.Fprintf(stdout, "Low confidence: review %s manually\n", id)
	}
	return 0
}

func runAll(ctx context.Context, runner *pipeline.Runner, opts pipeline.RunOptions, stdout io.Writer, lg logger.ILogger) int {
	sum, err := runner.RunAll(ctx, opts)
	if sum == nil {
		lg.Errorf("batch: %v", err)
		return 1
	}

	fmt.Fprintln(stdout, "Summary")
	fmt.Fprintf(stdout, "  Total:     %d\n", sum.Total)
	fmt.Fprintf(stdout, "  Processed: %d\n", sum.Processed)
	fmt.Fprintf(stdout, "  Skipped:   %d\n", sum.Skipped)
	fmt.Fprintf(stdout, "  Failed:    %d\n", len(sum.Failed))
	for _, id := range sum.Failed {
		fmt.Fprintf(stdout, "    - %s\n", id)
	}
	if sum.Processed > 0 {
		fmt.Fprintf(stdout, "  Average score: %.4f\n", sum.AverageScore)
	}
	if len(sum.NeedsReview) > 0 {
		fmt.Fprintf(stdout, "  Needs review (%d):\n", len(sum.NeedsReview))
		for _, r := range sum.NeedsReview {
			fmt.Fprintf(stdout, "    - %s (%.4f)\n", r.SlideID, r.Score)
		}
	}

	if err != nil {
		lg.Errorf("batch interrupted: %v", err)
		return 1
	}
	if len(sum.Failed) > 0 {
		return 1
	}
	return 0
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "cosmx-align - align CosMx images onto H&E slides")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cosmx-align [options] -slide ID     Align one slide")
	fmt.Fprintln(w, "  cosmx-align [options] -all          Align every slide")
	fmt.Fprintln(w, "  cosmx-align serve [options]         Run the MCP tool server on stdin/stdout")
	fmt.Fprintln(w, "  cosmx-align init-config [FILE]      Write the default configuration")
	fmt.Fprintln(w, "  cosmx-align version                 Print version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	var o options
	fs := newFlagSet(&o, w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  COSMX_ALIGN_LOG_LEVEL=debug    Enable debug logging")
}
