package internal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const downloadWorkers = 4

// Fetcher downloads publications linked from the publisher's statistics page
type Fetcher struct {
	cfg    FetchConfig
	client *resty.Client
	logger zerolog.Logger
}

func NewFetcher(cfg FetchConfig, logger zerolog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetHeader("User-Agent", "flowstar")
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// Links returns the absolute URLs of spreadsheet links on the statistics page
// whose href contains filter, in page order without duplicates
func (f *Fetcher) Links(ctx context.Context, filter string) ([]string, error) {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	page, err := base.Parse(f.cfg.StatsPage)
	if err != nil {
		return nil, fmt.Errorf("parsing stats page: %w", err)
	}

	resp, err := f.client.R().SetContext(ctx).Get(page.String())
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", page, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("requesting %s: status %d", page, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", page, err)
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(strings.ToLower(href), "xls") || !strings.Contains(href, filter) {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			f.logger.Warn().Str("href", href).Err(err).Msg("Skipping unparseable link")
			return
		}
		if !seen[u.String()] {
			seen[u.String()] = true
			links = append(links, u.String())
		}
	})
	f.logger.Debug().Str("filter", filter).Int("links", len(links)).Msg("Found publication links")
	return links, nil
}

// Download fetches one publication into a source named after the file
func (f *Fetcher) Download(ctx context.Context, link string) (Source, error) {
	resp, err := f.client.R().SetContext(ctx).Get(link)
	if err != nil {
		return Source{}, fmt.Errorf("downloading %s: %w", link, err)
	}
	if resp.StatusCode() >= 300 {
		return Source{}, fmt.Errorf("downloading %s: status %d", link, resp.StatusCode())
	}
	name := link
	if u, err := url.Parse(link); err == nil {
		if unescaped, err := url.PathUnescape(path.Base(u.Path)); err == nil {
			name = unescaped
		}
	}
	return Source{Name: name, Data: resp.Body()}, nil
}

// Fetch downloads every publication matching the configured filters, at most
// downloadWorkers at a time. With no filters every spreadsheet link is fetched.
// Sources come back in link order.
func (f *Fetcher) Fetch(ctx context.Context) ([]Source, error) {
	filters := f.cfg.Filters
	if len(filters) == 0 {
		filters = []string{""}
	}

	var links []string
	seen := make(map[string]bool)
	for _, filter := range filters {
		found, err := f.Links(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, link := range found {
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
	}

	sources := make([]Source, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)
	for i, link := range links {
		g.Go(func() error {
			src, err := f.Download(gctx, link)
			if err != nil {
				return err
			}
			f.logger.Info().Str("source", src.Name).Int("bytes", len(src.Data)).Msg("Downloaded publication")
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
