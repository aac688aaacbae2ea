package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pauljones0/fly4deals/internal/config"
	"github.com/pauljones0/fly4deals/internal/models"
	"github.com/pauljones0/fly4deals/internal/util"
)

const downloadChunkSize = 8192

type Scraper interface {
	DiscoverNewPosts(ctx context.Context, now time.Time) ([]models.PostRecord, error)
}

type Client struct {
	httpClient  *http.Client
	pages       PageLoader
	selectors   SelectorConfig
	baseURL     string
	listingURL  string
	allowedHost string
	imageRoot   string
	location    *time.Location
	window      time.Duration
}

// New builds a scraper using the transport selected by cfg.FetchMode. The
// returned close function releases the browser when one was started.
func New(cfg *config.Config, selectors SelectorConfig) (*Client, func() error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.FetchMode == config.FetchModeBrowser {
		browser := NewBrowserLoader(cfg.HTTPTimeout)
		return NewWithLoader(cfg, selectors, httpClient, browser), browser.Close
	}
	return NewWithLoader(cfg, selectors, httpClient, NewHTTPLoader(httpClient)), func() error { return nil }
}

// NewWithLoader builds a scraper around an explicit page loader. Images are
// always downloaded with httpClient.
func NewWithLoader(cfg *config.Config, selectors SelectorConfig, httpClient *http.Client, pages PageLoader) *Client {
	var host string
	if parsed, err := url.Parse(cfg.ForumBaseURL); err == nil {
		host = parsed.Hostname()
	}
	return &Client{
		httpClient:  httpClient,
		pages:       pages,
		selectors:   selectors,
		baseURL:     cfg.ForumBaseURL,
		listingURL:  cfg.ListingURL(),
		allowedHost: host,
		imageRoot:   cfg.ImageRoot,
		location:    cfg.Location,
		window:      cfg.RecencyWindow,
	}
}

type listingEntry struct {
	title        string
	url          string
	rawTimestamp string
}

// DiscoverNewPosts reads the listing page once and returns the posts created
// within the recency window before now, newest first. Each returned post has
// its body fetched and its attachments downloaded.
func (c *Client) DiscoverNewPosts(ctx context.Context, now time.Time) ([]models.PostRecord, error) {
	slog.Info("Fetching forum listing page", "url", c.listingURL)
	doc, err := c.fetchPage(ctx, c.listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page: %w", err)
	}

	entries, err := c.parseListing(doc)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-c.window)
	seen := make(map[string]bool, len(entries))
	var posts []models.PostRecord

	for _, entry := range entries {
		createdAt, err := ParseForumTimestamp(entry.rawTimestamp, c.location)
		if err != nil {
			slog.Warn("Could not parse post timestamp", "url", entry.url, "error", err)
			continue
		}
		if !createdAt.After(cutoff) {
			slog.Debug("Post outside recency window", "url", entry.url, "created_at", createdAt)
			continue
		}
		if seen[entry.url] {
			continue
		}
		seen[entry.url] = true

		content, imgCount, err := c.FetchPost(ctx, entry.url)
		if err != nil {
			slog.Warn("Failed to fetch post, skipping", "url", entry.url, "error", err)
			continue
		}

		posts = append(posts, models.PostRecord{
			Title:     entry.title,
			CreatedAt: createdAt,
			URL:       entry.url,
			Content:   content,
			ImgCount:  imgCount,
		})
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (c *Client) parseListing(doc *goquery.Document) ([]listingEntry, error) {
	sel := c.selectors.Listing
	content := doc.Find(sel.Content)
	if content.Length() == 0 {
		return nil, fmt.Errorf("no '%s' element found on listing page. Potential block or page structure change", sel.Content)
	}

	var entries []listingEntry
	content.Find(sel.TopicLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			slog.Warn("Topic link without href", "title", strings.TrimSpace(s.Text()))
			return
		}
		rawTimestamp, _ := s.Attr(sel.TimestampAttr)
		entries = append(entries, listingEntry{
			title:        strings.TrimSpace(s.Text()),
			url:          util.NormalizePostPath(href),
			rawTimestamp: rawTimestamp,
		})
	})
	return entries, nil
}

// FetchPost returns the body text of a post and the number of attachment
// images found on it. Found images are downloaded to the post's image
// directory; individual download failures are logged and skipped, so the
// count may exceed the number of files written.
func (c *Client) FetchPost(ctx context.Context, postPath string) (string, int, error) {
	doc, err := c.fetchPage(ctx, util.ResolveForumURL(c.baseURL, postPath))
	if err != nil {
		return "", 0, err
	}

	sel := c.selectors.Post
	content := doc.Find(sel.Content)
	if content.Length() == 0 {
		return "", 0, fmt.Errorf("no '%s' element found on post %s", sel.Content, postPath)
	}

	body := strings.TrimSpace(content.Find(sel.Body).First().Text())
	imageURLs := c.attachmentImages(content)
	if len(imageURLs) > 0 {
		c.downloadImages(ctx, postPath, imageURLs)
	}
	return body, len(imageURLs), nil
}

// attachmentImages collects images from attachment blocks nested inside
// another block of the same class. Images in outer blocks are decoration.
func (c *Client) attachmentImages(content *goquery.Selection) []string {
	sel := c.selectors.Post
	var urls []string
	content.Find(sel.AttachmentBlock).Each(func(_ int, block *goquery.Selection) {
		nested := block.Find(sel.AttachmentBlock).First()
		if nested.Length() == 0 {
			return
		}
		nested.Find(sel.Image).Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}
			urls = append(urls, util.ResolveForumURL(c.baseURL, src))
		})
	})
	return urls
}

func (c *Client) downloadImages(ctx context.Context, postPath string, imageURLs []string) int {
	dir := util.ImageDir(c.imageRoot, postPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("Failed to create image directory", "dir", dir, "error", err)
		return 0
	}

	saved := 0
	for _, imageURL := range imageURLs {
		dest := util.ImagePath(c.imageRoot, postPath, saved+1)
		if err := c.downloadImage(ctx, imageURL, dest); err != nil {
			slog.Warn("An error occurred while downloading image", "url", imageURL, "error", err)
			continue
		}
		saved++
	}
	slog.Info("Downloaded post images", "post", postPath, "found", len(imageURLs), "saved", saved)
	return saved
}

func (c *Client) downloadImage(ctx context.Context, imageURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch image: status code %d", res.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.CopyBuffer(f, res.Body, make([]byte, downloadChunkSize)); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return f.Close()
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", pageURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	if hostname := parsedURL.Hostname(); hostname != c.allowedHost {
		return nil, fmt.Errorf("security violation: URL hostname %s is not the forum host", hostname)
	}

	return c.pages.Load(ctx, pageURL)
}
