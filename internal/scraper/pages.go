package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html/charset"
)

// PageLoader fetches a forum page and parses it into a document.
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// HTTPLoader fetches pages with a plain HTTP GET.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(client *http.Client) *HTTPLoader {
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", pageURL, err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, res.StatusCode)
	}

	// The board has served ISO-8859-2 pages in the past; month names such
	// as "Paź" only match after decoding to UTF-8.
	body, err := charset.NewReader(res.Body, res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", pageURL, err)
	}
	return goquery.NewDocumentFromReader(body)
}

// BrowserLoader renders pages in headless Chrome. It is used when the forum
// only serves the board to clients that execute its scripts.
type BrowserLoader struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

func NewBrowserLoader(timeout time.Duration) *BrowserLoader {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserLoader{allocCtx: allocCtx, cancel: cancel, timeout: timeout}
}

func (l *BrowserLoader) Load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	tabCtx, cancelTab := chromedp.NewContext(l.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, l.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render URL %s: %w", pageURL, err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Close shuts down the browser process.
func (l *BrowserLoader) Close() error {
	l.cancel()
	return nil
}
