package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"lsnpeer/internal/config"
	"lsnpeer/internal/daemon"
	"lsnpeer/internal/metrics"
	"lsnpeer/internal/pprofutil"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return 0
	}
	switch args[0] {
	case "run":
		return runNode(args[1:], stdout, stderr)
	case "status":
		return runStatus(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: lsnpd <run|status> [args]")
	fmt.Fprintln(w, "  run    [--user NAME] [--port N] [--downloads DIR] [--verbose] [--no-verify-ip]")
	fmt.Fprintln(w, "  status [--metrics PATH]")
}

func runNode(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", cfg.UserName, "local user name")
	display := fs.String("display", cfg.DisplayName, "display name")
	port := fs.Int("port", cfg.Port, "udp port")
	downloads := fs.String("downloads", cfg.DownloadsDir, "directory for received files")
	metricsPath := fs.String("metrics", cfg.MetricsPath, "metrics snapshot path")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	noVerifyIP := fs.Bool("no-verify-ip", false, "skip sender ip verification")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg.UserName = *user
	cfg.DisplayName = *display
	cfg.Port = *port
	cfg.DownloadsDir = *downloads
	cfg.MetricsPath = *metricsPath
	if *noVerifyIP {
		cfg.VerifySenderIP = false
	}
	if *verbose {
		_ = os.Setenv("LSNP_VERBOSE", "1")
	}

	if err := pprofutil.StartFromEnv(stderr); err != nil {
		fmt.Fprintf(stderr, "pprof start failed: %v\n", err)
		return 1
	}
	runner, err := daemon.NewRunner(cfg, daemon.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "start failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "READY user_id=%s port=%d\n", runner.Local.UserID, cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(stderr, "run failed: %v\n", err)
		return 1
	}
	return 0
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("metrics", cfg.MetricsPath, "metrics snapshot path")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "no metrics path configured")
		return 1
	}
	snap := readMetricsSnapshot(*path)
	fmt.Fprintln(stdout, "Local observation summary:")
	fmt.Fprintf(stdout, "  received: %d (posts=%d dms=%d chunks=%d)\n",
		snap.Received.Total, snap.Received.Posts, snap.Received.DMs, snap.Received.Chunks)
	fmt.Fprintf(stdout, "  dropped: malformed=%d unauthorized=%d duplicate=%d unknown_type=%d\n",
		snap.Drops.Malformed, snap.Drops.Unauthorized, snap.Drops.Duplicate, snap.Drops.UnknownType)
	fmt.Fprintf(stdout, "  acks: resolved=%d unclaimed=%d\n", snap.Acks.Resolved, snap.Acks.Unclaimed)
	fmt.Fprintf(stdout, "  games completed: %d\n", snap.Games.Completed)
	return 0
}

func readMetricsSnapshot(path string) metrics.Snapshot {
	var snap metrics.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap
	}
	_ = json.Unmarshal(data, &snap)
	return snap
}
