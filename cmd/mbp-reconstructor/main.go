package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"mbp-reconstructor/internal/artifact"
	"mbp-reconstructor/internal/config"
	"mbp-reconstructor/internal/engine"
	"mbp-reconstructor/internal/mbo"
	"mbp-reconstructor/internal/mbp"
	"mbp-reconstructor/internal/metrics"
	"mbp-reconstructor/internal/server"
	"mbp-reconstructor/internal/state"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "mbp-reconstructor",
		Usage:     "replay an MBO event log into MBP-10 book snapshots",
		ArgsUsage: "<mbo_input_file.csv>",
		Writer:    stdout,
		ErrWriter: stderr,
		// main owns the exit code; cli must not call os.Exit itself.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yaml",
				Usage: "yaml config file; optional unless set explicitly",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output csv path (default " + config.DefaultOutput + ")",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "serve the inspection API on this address and keep running after the replay",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "write replay metrics in node_exporter textfile format to this path",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, stdout, stderr)
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.IsSet("config"))
	if err != nil {
		return cfg, fmt.Errorf("failed to load %s: %w", c.String("config"), err)
	}
	for flag, dst := range map[string]*string{
		"output":           &cfg.Output,
		"log-level":        &cfg.LogLevel,
		"listen":           &cfg.Listen,
		"metrics-textfile": &cfg.MetricsTextfile,
	} {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context, stdout, stderr io.Writer) error {
	if c.NArg() != 1 {
		return cli.Exit(fmt.Sprintf("Usage: %s <mbo_input_file.csv>", c.App.Name), 1)
	}
	input := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	runID := uuid.NewString()
	logger := config.NewLogger(cfg.LogLevel, stderr).With(slog.String("run_id", runID))

	in, err := os.Open(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: Cannot open file %s", input), 1)
	}
	defer in.Close()

	out, err := os.Create(cfg.Output)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: Cannot create output file %s: %v", cfg.Output, err), 1)
	}
	defer out.Close()

	start := time.Now()

	// Run state + metrics
	st := state.NewState(runID, input, cfg.Output)
	reg, err := metrics.NewRegistry(st)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Sinks: the csv artifact always, the run state always, the server when enabled.
	writer, err := mbp.NewWriter(out)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	sinks := []engine.Sink{writer, st}

	var srv *server.HTTPServer
	var httpSrv *http.Server
	if cfg.Listen != "" {
		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return cli.Exit(fmt.Sprintf("listen %s: %v", cfg.Listen, err), 1)
		}
		srv = server.NewHTTPServer(st, reg, logger)
		defer srv.Close()
		sinks = append(sinks, srv)
		httpSrv = &http.Server{Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("inspection server listening", slog.String("addr", ln.Addr().String()))
			if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", slog.String("err", err.Error()))
			}
		}()
	}

	logger.Info("replay starting",
		slog.String("input", input),
		slog.String("output", cfg.Output),
	)

	reader := mbo.NewReader(bufio.NewReaderSize(in, 1<<20), logger)
	eng := engine.New(engine.Tee(sinks...), logger)
	sum, replayErr := engine.Replay(reader, eng, func(s engine.Stats) {
		st.Observe(s)
		st.SetMalformed(reader.Malformed())
	})
	if err := writer.Flush(); err != nil && replayErr == nil {
		replayErr = fmt.Errorf("flush output: %w", err)
	}
	if replayErr != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", replayErr), 1)
	}
	if err := out.Close(); err != nil {
		return cli.Exit(fmt.Sprintf("Error: close output: %v", err), 1)
	}

	elapsed := time.Since(start)
	st.SetMalformed(reader.Malformed())
	st.Finish(sum, elapsed)

	logger.Info("replay finished",
		slog.Int("rows_read", reader.Rows()),
		slog.Int("rows_malformed", reader.Malformed()),
		slog.Int("rows_emitted", writer.Rows()),
		slog.Int("rejected", sum.Rejected),
		slog.Int("trades", sum.Trades),
		slog.Int("trades_dropped", sum.TradesDropped),
		slog.Int("fills", sum.Fills),
		slog.Int("unresolved_trades", sum.UnresolvedTrades),
		slog.Duration("elapsed", elapsed),
	)

	if info, err := artifact.Fingerprint(cfg.Output); err != nil {
		logger.Warn("artifact fingerprint", slog.String("err", err.Error()))
	} else {
		logger.Info("artifact written",
			slog.String("path", info.Path),
			slog.Int64("bytes", info.Bytes),
			slog.String("sha256", info.SHA256),
		)
		if srv != nil {
			srv.SetArtifact(info)
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(reg, cfg.MetricsTextfile); err != nil {
			logger.Error("metrics textfile", slog.String("err", err.Error()))
		}
	}

	fmt.Fprintf(stdout, "Order book reconstruction completed in %d ms\n", elapsed.Milliseconds())
	fmt.Fprintf(stdout, "Output written to: %s\n", cfg.Output)

	if srv == nil {
		return nil
	}

	// Keep serving the finished replay until interrupted.
	srv.BroadcastSummary(sum)
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down...")
	shCtx, shCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shCancel()
	_ = httpSrv.Shutdown(shCtx)
	logger.Info("bye")
	return nil
}
