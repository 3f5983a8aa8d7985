package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mohsinsiddi/alchscan/internal/collector"
	"github.com/Mohsinsiddi/alchscan/internal/config"
	"github.com/Mohsinsiddi/alchscan/internal/keys"
	"github.com/Mohsinsiddi/alchscan/internal/metrics"
	"github.com/Mohsinsiddi/alchscan/internal/providers"
	"github.com/Mohsinsiddi/alchscan/internal/store"
	"github.com/Mohsinsiddi/alchscan/internal/ui"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect [address]",
	Short: "Fetch every transfer of an address into a JSONL file",
	Long: `Fetch the asset transfers of an address from Alchemy and write them to
the output file, one JSON document per line. The file is replaced on every
successful run and left untouched when the run fails.

The address may be given as an argument or via the address config key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Address = args[0]
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		apiKey, err := keys.ResolveAPIKey(cfg.APIKey, openKeystore())
		if errors.Is(err, keys.ErrNotFound) {
			return errors.New("no Alchemy API key: pass --api-key, set ALCHSCAN_API_KEY or run `alchscan key set <key>`")
		}
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s on %s  %s\n", ui.StyleTitle.Render("Collecting transfers"),
			ui.Addr(cfg.Address), ui.NetworkName(cfg.Network),
			ui.Meta(fmt.Sprintf("(%d stream(s))", len(cfg.Streams()))))

		// Debug logs share stderr with the spinner, so only spin when quiet.
		var onProgress func(collector.Progress)
		var spin *ui.Spinner
		if cfg.LogLevel != "debug" {
			spin = ui.NewSpinnerTo(cmd.ErrOrStderr(), "Fetching first page...")
			spin.Start()
			onProgress = func(p collector.Progress) {
				spin.SetMsg(ui.TruncateAddr(cfg.Address) + ": " + progressLine(p))
			}
		}

		start := time.Now()
		res, err := runCollect(ctx, cfg, apiKey, logger, onProgress)
		if spin != nil {
			spin.Stop()
		}
		if err != nil {
			return err
		}

		printCollectSummary(out, cfg, res, time.Since(start))
		return nil
	},
}

// runCollect wires the Alchemy client, request metrics, the optional page
// cache, the JSONL sink and the collector for one run.
func runCollect(ctx context.Context, c *config.Config, apiKey string, logger *slog.Logger, onProgress func(collector.Progress)) (res *collector.Result, err error) {
	alchemy, err := providers.NewAlchemy(c.Network, apiKey, providers.AlchemyOptions{
		BaseURL:      c.BaseURL,
		PageSize:     c.PageSize,
		WithMetadata: c.WithMetadata,
		Timeout:      c.Timeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	if c.MetricsFile != "" {
		defer func() {
			if werr := m.WriteTextfile(c.MetricsFile); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	// Metrics sit below the cache so they only count real requests.
	var fetcher providers.PageFetcher = m.Instrument(alchemy)
	if c.Cache != "" {
		cache, err := store.OpenPageCache(c.Cache, c.Network, fetcher, logger)
		if err != nil {
			return nil, err
		}
		defer cache.Close()
		fetcher = cache
	}

	col, err := collector.New(fetcher, collector.Options{
		Streams:     c.Streams(),
		Concurrency: c.Concurrency,
		MaxRecords:  c.MaxRecords,
		MaxPages:    c.MaxPages,
		Strict:      c.Strict,
		Sink:        store.NewJSONLWriter(c.Output),
		Logger:      logger,
		OnProgress:  onProgress,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("collect starting",
		slog.String("fetcher", fetcher.Name()),
		slog.Int("streams", len(c.Streams())),
		slog.Int("concurrency", c.Concurrency),
		slog.Int("max_records", c.MaxRecords),
	)
	return col.Collect(ctx)
}

func progressLine(p collector.Progress) string {
	return fmt.Sprintf("%d records from %d pages, %d stream(s) active", p.Records, p.Pages, p.Streams)
}

func printCollectSummary(w io.Writer, c *config.Config, res *collector.Result, took time.Duration) {
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, ui.Warn(warning))
	}

	if len(res.PerStream) > 1 {
		t := ui.NewTable([]ui.Column{
			{Title: "Direction", Width: 10},
			{Title: "Categories", Width: 40},
			{Title: "Pages", Width: 7, Right: true},
			{Title: "Records", Width: 9, Right: true},
		})
		for _, s := range res.PerStream {
			t.AddRow(ui.Row{
				string(s.Query.Direction),
				strings.Join(s.Query.Categories, ","),
				fmt.Sprintf("%d", s.Pages),
				fmt.Sprintf("%d", s.Records),
			})
		}
		fmt.Fprintln(w, t.Render())
	}

	fmt.Fprintln(w, ui.KeyValueBlock("Collection complete", [][2]string{
		{"Address", c.Address},
		{"Network", c.Network},
		{"Records", fmt.Sprintf("%d", len(res.Records))},
		{"Pages", fmt.Sprintf("%d", res.Pages)},
		{"Streams", fmt.Sprintf("%d", res.Streams)},
		{"Output", c.Output},
		{"Took", took.Round(time.Millisecond).String()},
	}))
	fmt.Fprintln(w, ui.Success(fmt.Sprintf("Wrote %d records to %s", len(res.Records), c.Output)))
}

// errorLine renders a failed run's error with a hint matching its kind.
func errorLine(err error) string {
	line := ui.Err(err.Error())
	switch {
	case errors.Is(err, config.ErrInvalid):
		line += "\n" + ui.Hint("See `alchscan config show` for the effective configuration.")
	case errors.Is(err, providers.ErrRPC):
		line += "\n" + ui.Hint("Alchemy rejected the request; check the API key and network.")
	case errors.Is(err, providers.ErrMalformed):
		line += "\n" + ui.Hint("Run without --strict to keep records fetched before the bad page.")
	case errors.Is(err, context.Canceled):
		line = ui.Warn("Interrupted; nothing was written.")
	}
	return line
}

func init() {
	f := collectCmd.Flags()
	f.String("api-key", "", "Alchemy API key (default: keychain)")
	f.String("network", "ethereum", "network: "+strings.Join(providers.Networks(), ", "))
	f.String("base-url", "", "override the Alchemy endpoint base URL")
	f.Int("concurrency", 10, "maximum simultaneous requests")
	f.Int("max-records", collector.DefaultMaxRecords, "stop after this many records")
	f.Int("page-size", providers.MaxPageSize, "transfers per page (1-1000)")
	f.StringP("output", "o", "transactions.txt", "output file")
	f.String("direction", config.DirectionFrom, "transfers sent from, to, or both")
	f.StringSlice("categories", providers.DefaultCategories, "transfer categories")
	f.Bool("split-categories", false, "walk each category as its own stream")
	f.Bool("with-metadata", false, "include block timestamps")
	f.Bool("strict", false, "fail on malformed responses")
	f.Int("max-pages", 0, "per-stream page limit (0 = unlimited)")
	f.Duration("timeout", 30*time.Second, "per-request timeout")
	f.String("cache", "", "bbolt page cache path (empty = off)")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "text", "text or json")
}
