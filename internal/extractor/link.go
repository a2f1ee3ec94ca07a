package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Readability falls back to the raw body text when it finds no article
// node, so a nav-only page can still yield a few stray words. Anything
// shorter than this is chrome, not an article.
const minArticleLength = 100

// Link fetches a URL and extracts the main article body, stripping
// navigation and ads. It never returns an empty transcript: an unreachable
// page or one with no article content fails, so downstream analysis cannot
// mistake it for "no content".
type Link struct {
	client *http.Client
}

// NewLink builds the link extractor around the supplied HTTP client
// (a nil client falls back to http.DefaultClient).
func NewLink(client *http.Client) *Link {
	if client == nil {
		client = http.DefaultClient
	}
	return &Link{client: client}
}

// Extract fetches ref and returns the article text plus title/byline
// metadata.
func (l *Link) Extract(ctx context.Context, ref string) (*Result, error) {
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, extractionErr("link", fmt.Sprintf("invalid url %q", ref), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, extractionErr("link", "build request", err)
	}
	req.Header.Set("User-Agent", "paranote/1.0 (+knowledge capture)")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, extractionErr("link", fmt.Sprintf("fetch %s", ref), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, extractionErr("link", fmt.Sprintf("fetch %s: HTTP %d", ref, resp.StatusCode), nil)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, extractionErr("link", "unparseable page content", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minArticleLength {
		return nil, extractionErr("link", "page has no readable article content", nil)
	}

	metadata := map[string]any{
		"url":        ref,
		"word_count": len(strings.Fields(text)),
	}
	if article.Title != "" {
		metadata["title"] = article.Title
	}
	if article.Byline != "" {
		metadata["author"] = article.Byline
	}
	if article.SiteName != "" {
		metadata["site"] = article.SiteName
	}

	return &Result{Text: text, Metadata: metadata}, nil
}
