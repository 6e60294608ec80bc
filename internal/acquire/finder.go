package acquire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"centrist/config"
	"centrist/internal/pipeline"
	"centrist/tools/web_fetch"
	"centrist/tools/web_search"
	"centrist/utils"
)

// BrowserFinder discovers candidate article URLs through a web search
// provider and extracts their content with a headless browser. One
// finder is shared across tasks; each Open yields a session with its
// own browser so concurrent tasks never share a render pipeline.
type BrowserFinder struct {
	searcher web_search.WebSearcher
	search   config.SearchConfig
	fetch    config.FetchConfig
	logger   *log.Logger
}

func NewBrowserFinder(cfg *config.Config, logger *log.Logger) (*BrowserFinder, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ACQUIRE] ", log.LstdFlags)
	}
	apiKey := cfg.Search.SerperAPIKey
	if web_search.Provider(cfg.Search.Provider) == web_search.BraveProvider {
		apiKey = cfg.Search.BraveAPIKey
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("no API key configured for search provider %q", cfg.Search.Provider)
	}
	searcher, err := web_search.NewWebSearcher(
		web_search.Provider(cfg.Search.Provider),
		apiKey,
		&http.Client{Timeout: cfg.Search.Timeout},
	)
	if err != nil {
		return nil, err
	}
	return &BrowserFinder{
		searcher: searcher,
		search:   cfg.Search,
		fetch:    cfg.Fetch,
		logger:   logger,
	}, nil
}

func (f *BrowserFinder) Open(ctx context.Context) (pipeline.FinderSession, error) {
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, f.fetch.RenderTimeout, f.fetch.MaxPageChars)
	if err != nil {
		return nil, err
	}
	return &session{finder: f, fetcher: fetcher}, nil
}

type session struct {
	finder  *BrowserFinder
	fetcher web_fetch.WebFetcher
}

// Find discovers recent articles on the outlet's domain and extracts
// their text. Individual fetch failures are skipped, not fatal; an
// error is returned only when discovery itself fails.
func (s *session) Find(ctx context.Context, source config.SourceConfig, query string) ([]pipeline.RawArticle, error) {
	hits, err := s.finder.searcher.Discover(ctx, query, s.finder.search.MaxResults, []string{source.Domain}, s.finder.search.RecencyDays)
	if err != nil {
		return nil, fmt.Errorf("discovering articles on %s: %w", source.Domain, err)
	}

	var raw []pipeline.RawArticle
	for _, hit := range hits {
		if ctx.Err() != nil {
			return raw, ctx.Err()
		}
		page, err := s.fetcher.Exec(ctx, hit.URL)
		if err != nil || page.Status != 200 {
			s.finder.logger.Printf("skipping %s: render failed (status %d)", hit.URL, page.Status)
			continue
		}
		title := page.Title
		if title == "" {
			title = hit.Title
		}
		content := utils.CleanSpaces(page.Text)
		if content == "" {
			content = utils.CleanSpaces(hit.Snippet)
		}
		raw = append(raw, pipeline.RawArticle{
			Source:  source.Name,
			Title:   title,
			Content: content,
			URL:     hit.URL,
		})
	}
	return raw, nil
}

func (s *session) Close() error { return s.fetcher.Close() }
