package trend

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"enteliwatch/internal/metrics"
)

// MaxPages is the hard pagination cap, a circuit breaker against a
// misbehaving upstream emitting endless continuation links. Hitting it
// is not an error: the partial result is still served, flagged partial.
const MaxPages = 50

// PageFetcher performs one log-buffer GET. Query parameters are sent
// only when non-nil; continuation fetches carry just the format
// selector because the gateway embeds accumulated state in the link.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string, params url.Values) (*Page, error)
}

// Paginator walks a log-buffer continuation chain sequentially. Each
// fetch depends on the link produced by the previous page, so there is
// no parallelism to exploit.
type Paginator struct {
	fetcher PageFetcher
	logger  zerolog.Logger
}

// NewPaginator wires a fetcher into a paginator.
func NewPaginator(fetcher PageFetcher, logger zerolog.Logger) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "paginator").Logger(),
	}
}

// Pages fetches the first page with initialParams and follows $next
// links until none remains or MaxPages is reached. The boolean result
// is true when the cap truncated the chain.
func (p *Paginator) Pages(ctx context.Context, baseURL string, initialParams url.Values) ([]*Page, bool, error) {
	pages := make([]*Page, 0, 4)
	nextURL := baseURL
	params := initialParams

	for nextURL != "" {
		if len(pages) >= MaxPages {
			p.logger.Warn().Int("pages", len(pages)).Msg("pagination cap reached, returning partial chain")
			return pages, true, nil
		}

		page, err := p.fetcher.FetchPage(ctx, nextURL, params)
		if err != nil {
			return nil, false, err
		}
		pages = append(pages, page)
		metrics.TrendPagesFetched.Inc()

		nextURL = resolveContinuation(baseURL, page.Next)
		// Continuation links embed the accumulated query state; only
		// the format selector is repeated.
		params = url.Values{"alt": []string{"json"}}
	}

	p.logger.Debug().Int("pages", len(pages)).Msg("pagination complete")
	return pages, false, nil
}

// resolveContinuation turns a $next reference into an absolute URL.
// The gateway sometimes emits bare path fragments that must be
// resolved against the host of the original request.
func resolveContinuation(baseURL, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}
	if strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		return next
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
