package trend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DefaultExpectedInterval is the device logger's sampling cadence used
// for gap detection when configuration does not override it.
const DefaultExpectedInterval = 5 * time.Minute

// queryTimeLayout is the gateway's published-ge/le parameter format:
// second-resolution ISO-8601 with a trailing Z.
const queryTimeLayout = "2006-01-02T15:04:05"

// Options parameterise a Pipeline.
type Options struct {
	// LogBufferURL is the absolute log-buffer endpoint of the trend log.
	LogBufferURL string
	// ExpectedInterval is the logger's sampling cadence.
	ExpectedInterval time.Duration
	// MaxGapSamples caps gap interpolation, in interval steps.
	MaxGapSamples int
	// MaxPoints bounds the returned sample count.
	MaxPoints int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Pipeline turns a named time range into a sorted, gap-filled,
// downsampled, display-labeled sample sequence. It holds no state
// between calls and is safe for concurrent use.
type Pipeline struct {
	paginator *Paginator
	opts      Options
	logger    zerolog.Logger
}

// Record is one output point in the wire shape the dashboard consumes.
type Record struct {
	Timestamp     string  `json:"timestamp"`
	Temperature   float64 `json:"temperature"`
	FormattedTime string  `json:"formatted_time"`
	Interpolated  bool    `json:"interpolated,omitempty"`
}

// Result is a completed trend query.
type Result struct {
	Records      []Record `json:"records"`
	TimeRange    string   `json:"time_range"`
	ActualRange  string   `json:"actual_range"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	TotalRecords int      `json:"total_records"`
	// Partial is true when the pagination cap truncated the chain.
	Partial bool `json:"partial"`
}

// ErrorResult shapes a failed trend query for the HTTP boundary. The
// caller always receives well-formed JSON, success or failure.
type ErrorResult struct {
	Error        string   `json:"error"`
	Records      []Record `json:"records"`
	TotalRecords int      `json:"total_records"`
	ActualRange  string   `json:"actual_range"`
}

// NewErrorResult renders err into the failure shape.
func NewErrorResult(err error) *ErrorResult {
	return &ErrorResult{
		Error:       err.Error(),
		Records:     []Record{},
		ActualRange: "Error",
	}
}

// NewPipeline constructs a trend pipeline over the given fetcher.
func NewPipeline(fetcher PageFetcher, opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if opts.LogBufferURL == "" {
		return nil, errors.New("trend: log buffer URL required")
	}
	if opts.ExpectedInterval <= 0 {
		opts.ExpectedInterval = DefaultExpectedInterval
	}
	if opts.MaxGapSamples <= 0 {
		opts.MaxGapSamples = DefaultMaxGapSamples
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	plog := logger.With().Str("component", "trend_pipeline").Logger()
	return &Pipeline{
		paginator: NewPaginator(fetcher, plog),
		opts:      opts,
		logger:    plog,
	}, nil
}

// Fetch runs the full pipeline for one named range: build query,
// paginate, extract and normalize, sort, interpolate, downsample,
// label. Per-record problems are skips; failures at the network
// boundary abort the request and surface as the returned error.
func (p *Pipeline) Fetch(ctx context.Context, rangeName string) (*Result, error) {
	spec := LookupRange(rangeName)
	now := p.opts.Now().UTC()
	start := now.Add(-spec.Lookback)

	params := url.Values{
		"alt":         []string{"json"},
		"max-results": []string{strconv.Itoa(spec.MaxResults)},
	}
	if !spec.AllPages {
		params.Set("published-ge", start.Format(queryTimeLayout)+"Z")
		params.Set("published-le", now.Format(queryTimeLayout)+"Z")
	}

	pages, partial, err := p.paginator.Pages(ctx, p.opts.LogBufferURL, params)
	if err != nil {
		return nil, fmt.Errorf("fetch trend pages: %w", err)
	}

	samples := make([]Sample, 0, 64)
	for _, page := range pages {
		for _, raw := range ExtractSamples(page, p.logger) {
			ts, normErr := NormalizeTimestamp(raw.Timestamp)
			if normErr != nil {
				p.logger.Debug().Err(normErr).Msg("skip record with bad timestamp")
				continue
			}
			samples = append(samples, Sample{
				Timestamp: ts,
				Raw:       raw.Timestamp,
				Value:     raw.Value,
			})
		}
	}

	// Stable sort keeps duplicate-timestamp records in arrival order;
	// duplicates pass through undeduplicated.
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	samples = FillGaps(samples, p.opts.ExpectedInterval, p.opts.MaxGapSamples)
	samples = Downsample(samples, p.opts.MaxPoints)

	records := make([]Record, len(samples))
	for i, sample := range samples {
		records[i] = Record{
			Timestamp:     rawOrFormatted(sample),
			Temperature:   sample.Value,
			FormattedTime: sample.Timestamp.UTC().Format(spec.LabelLayout),
			Interpolated:  sample.Interpolated,
		}
	}

	actual := "No data"
	if len(records) > 0 {
		actual = fmt.Sprintf("%d points", len(records))
	}

	p.logger.Info().
		Str("range", spec.Name).
		Int("pages", len(pages)).
		Int("records", len(records)).
		Bool("partial", partial).
		Msg("trend query complete")

	return &Result{
		Records:      records,
		TimeRange:    spec.Name,
		ActualRange:  actual,
		StartTime:    start.Format(queryTimeLayout) + "Z",
		EndTime:      now.Format(queryTimeLayout) + "Z",
		TotalRecords: len(records),
		Partial:      partial,
	}, nil
}

func rawOrFormatted(sample Sample) string {
	if sample.Raw != "" {
		return sample.Raw
	}
	return sample.Timestamp.UTC().Format(time.RFC3339)
}
