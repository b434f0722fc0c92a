// Package webimport turns a recipe web page into a recipe draft.
package webimport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"shoplist/internal/recipes"
)

const (
	maxBodySize    = 10 * 1024 * 1024
	maxSteps       = 30
	maxDescription = 280
)

var ErrNoTitle = errors.New("page has no title")

type Importer struct {
	client *http.Client
}

// New returns an Importer. A nil client gets a 30s timeout client.
func New(client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Importer{client: client}
}

// FromURL fetches rawURL and extracts a draft: the article title as name, the
// first paragraph as description and following paragraphs as steps.
// Ingredients are left for the user to enter.
func (im *Importer) FromURL(ctx context.Context, rawURL string) (recipes.Draft, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return recipes.Draft{}, fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return recipes.Draft{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; shoplist/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := im.client.Do(req)
	if err != nil {
		return recipes.Draft{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return recipes.Draft{}, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return recipes.Draft{}, fmt.Errorf("content-length %d exceeds %d bytes", resp.ContentLength, maxBodySize)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return recipes.Draft{}, fmt.Errorf("read body: %w", err)
	}
	if len(body) >= maxBodySize {
		return recipes.Draft{}, fmt.Errorf("body exceeds %d bytes", maxBodySize)
	}
	return FromHTML(body, u)
}

// FromHTML extracts a draft from an already fetched page.
func FromHTML(page []byte, pageURL *url.URL) (recipes.Draft, error) {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return recipes.Draft{}, fmt.Errorf("extract article: %w", err)
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return recipes.Draft{}, ErrNoTitle
	}
	var paras []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" && line != title {
			paras = append(paras, line)
		}
	}
	d := recipes.Draft{Name: title, Steps: []string{}}
	if len(paras) > 0 {
		d.Description = truncate(paras[0], maxDescription)
		paras = paras[1:]
	}
	if len(paras) > maxSteps {
		paras = paras[:maxSteps]
	}
	d.Steps = append(d.Steps, paras...)
	if src := source(article.SiteName, article.Byline); src != "" {
		d.Description = strings.TrimSpace(d.Description + "\n" + src)
	}
	return d, nil
}

func source(site, byline string) string {
	site, byline = strings.TrimSpace(site), strings.TrimSpace(byline)
	switch {
	case site != "" && byline != "":
		return fmt.Sprintf("Source: %s (%s)", site, byline)
	case site != "":
		return "Source: " + site
	case byline != "":
		return "Source: " + byline
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
