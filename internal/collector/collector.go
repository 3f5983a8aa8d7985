package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/Mohsinsiddi/alchscan/internal/providers"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxRecords bounds a run when no limit is configured.
const DefaultMaxRecords = 100_000

// Sink receives the final collection exactly once.
type Sink interface {
	Write(records []json.RawMessage) error
}

// Progress is reported after every completed page.
type Progress struct {
	Records int // total collected so far, before truncation
	Pages   int
	Streams int // streams still active
}

// Options configures a Collector.
type Options struct {
	Streams     []providers.Query
	Concurrency int
	MaxRecords  int
	MaxPages    int  // per stream; 0 = unlimited
	Strict      bool // malformed responses abort the run
	Sink        Sink
	Logger      *slog.Logger
	OnProgress  func(Progress)
}

// Result is the outcome of Collect.
type Result struct {
	Records   []json.RawMessage
	Pages     int
	Streams   int
	Warnings  []string
	PerStream []StreamSummary
}

// StreamSummary reports what one cursor chain fetched before truncation.
type StreamSummary struct {
	Query   providers.Query
	Pages   int
	Records int
}

// Collector drives paginated fetches for one or more cursor chains through a
// bounded pool of workers.
type Collector struct {
	fetcher providers.PageFetcher
	opts    Options
	logger  *slog.Logger
}

// New creates a Collector. Concurrency below 1 is treated as 1.
func New(fetcher providers.PageFetcher, opts Options) (*Collector, error) {
	if fetcher == nil {
		return nil, errors.New("collector: fetcher is required")
	}
	if len(opts.Streams) == 0 {
		return nil, errors.New("collector: at least one stream is required")
	}
	if opts.MaxRecords < 0 {
		return nil, fmt.Errorf("collector: max records must be >= 0, got %d", opts.MaxRecords)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Collector{fetcher: fetcher, opts: opts, logger: logger}, nil
}

// job is one page request. seq is the page's position in its stream.
type job struct {
	stream int
	seq    int
	cursor string
}

type outcome struct {
	job
	page *providers.Page
	err  error
}

// stream tracks one cursor chain. Only the coordinator touches it.
type stream struct {
	query    providers.Query
	pages    [][]json.RawMessage
	cursor   string
	inFlight bool
	done     bool
}

// Collect fetches pages until MaxRecords is reached or every stream is
// exhausted, then hands the truncated collection to the Sink.
//
// Each stream has at most one request in flight: the next request is only
// issued with the cursor its predecessor returned. Concurrency comes from
// running independent streams side by side.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	res, err := c.run(ctx)
	if err != nil {
		return nil, err
	}
	if c.opts.Sink != nil {
		if err := c.opts.Sink.Write(res.Records); err != nil {
			return nil, err
		}
		c.logger.Info("collection persisted", slog.Int("records", len(res.Records)))
	}
	return res, nil
}

func (c *Collector) run(ctx context.Context) (*Result, error) {
	streams := make([]*stream, len(c.opts.Streams))
	for i, q := range c.opts.Streams {
		streams[i] = &stream{query: q}
	}
	res := &Result{Streams: len(streams)}

	if c.opts.MaxRecords == 0 {
		res.Records = []json.RawMessage{}
		return res, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(c.opts.Concurrency, len(streams))
	jobs := make(chan job, len(streams))
	outcomes := make(chan outcome, len(streams))

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for j := range jobs {
				page, err := c.fetcher.FetchPage(gctx, streams[j.stream].query, j.cursor)
				select {
				case outcomes <- outcome{job: j, page: page, err: err}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	total, inFlight := 0, 0
	dispatch := func() {
		for i, s := range streams {
			if s.done || s.inFlight || total >= c.opts.MaxRecords {
				continue
			}
			s.inFlight = true
			inFlight++
			jobs <- job{stream: i, seq: len(s.pages), cursor: s.cursor}
		}
	}

	var runErr error
	dispatch()
	for inFlight > 0 {
		var o outcome
		select {
		case o = <-outcomes:
		case <-ctx.Done():
			runErr = ctx.Err()
		}
		if runErr != nil {
			break
		}
		inFlight--
		s := streams[o.stream]
		s.inFlight = false

		if o.err != nil {
			if !errors.Is(o.err, providers.ErrMalformed) || c.opts.Strict {
				runErr = fmt.Errorf("stream %s page %d: %w", s.query.Key(), o.seq, o.err)
				break
			}
			msg := fmt.Sprintf("stream %s page %d: %v; treating as end of data", s.query.Key(), o.seq, o.err)
			c.logger.Warn("malformed page", slog.String("stream", s.query.Key()), slog.Int("seq", o.seq), slog.Any("err", o.err))
			res.Warnings = append(res.Warnings, msg)
		}

		var transfers []json.RawMessage
		var cursor string
		if o.page != nil {
			transfers, cursor = o.page.Transfers, o.page.Cursor
		}
		stalled := len(transfers) == 0 && cursor != "" && cursor == o.cursor
		s.pages = append(s.pages, transfers)
		s.cursor = cursor
		total += len(transfers)
		res.Pages++

		switch {
		case o.err != nil, cursor == "":
			s.done = true
		case c.opts.MaxPages > 0 && len(s.pages) >= c.opts.MaxPages:
			s.done = true
		case stalled:
			// An empty page that hands back its own cursor can never advance.
			s.done = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("stream %s page %d: empty page repeated cursor; stopping stream", s.query.Key(), o.seq))
		}

		c.logger.Debug("page collected",
			slog.String("stream", s.query.Key()),
			slog.Int("seq", o.seq),
			slog.Int("count", len(transfers)),
			slog.Bool("more", cursor != ""),
			slog.Int("total", total),
		)
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(Progress{Records: total, Pages: res.Pages, Streams: activeStreams(streams)})
		}

		dispatch()
	}

	close(jobs)
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}

	res.Records = assemble(streams, c.opts.MaxRecords)
	for _, s := range streams {
		sum := StreamSummary{Query: s.query, Pages: len(s.pages)}
		for _, p := range s.pages {
			sum.Records += len(p)
		}
		res.PerStream = append(res.PerStream, sum)
	}
	return res, nil
}

func activeStreams(streams []*stream) int {
	n := 0
	for _, s := range streams {
		if !s.done {
			n++
		}
	}
	return n
}

// assemble concatenates pages by stream then by cursor lineage and truncates
// the result to limit.
func assemble(streams []*stream, limit int) []json.RawMessage {
	out := []json.RawMessage{}
	for _, s := range streams {
		for _, page := range s.pages {
			for _, rec := range page {
				if len(out) == limit {
					return out
				}
				out = append(out, rec)
			}
		}
	}
	return out
}
