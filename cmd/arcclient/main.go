package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/basekick-labs/arcclient/internal/config"
	"github.com/basekick-labs/arcclient/internal/logger"
	"github.com/basekick-labs/arcclient/internal/metrics"
	"github.com/basekick-labs/arcclient/pkg/client"
)

// Version is set at build time
var Version = "dev"

const usage = `Usage: arcclient <command> [flags]

Commands:
  query    Run a query and stream results to stdout
  write    Write line protocol from a file or stdin
  version  Print the version

Run 'arcclient <command> -h' for command flags. Defaults come from
arcclient.toml and ARCCLIENT_* environment variables.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "version", "-v", "--version":
		fmt.Println(Version)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "query", "write":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	metrics.Init(logger.Get("metrics"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "query":
		err = runQuery(ctx, cfg, args, os.Stdout)
	case "write":
		err = runWrite(ctx, cfg, args, os.Stdin)
	}
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newClient validates cfg and builds a client from it
func newClient(cfg *config.Config) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cc, logger.Get("client"))
}

// closeClient logs instead of failing; results were already delivered
func closeClient(c *client.Client) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close client")
	}
}

// printMetrics dumps the counters in Prometheus text format
func printMetrics(w io.Writer) {
	fmt.Fprint(w, metrics.Get().PrometheusFormat())
}
