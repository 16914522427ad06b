package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0"

type Header struct {
	Name  string
	Value string
}

type Request struct {
	URL     string
	Method  string
	Headers []Header
	Timeout time.Duration
}

type Response struct {
	StatusCode int
	Body       string

	// Title is the page <title>, useful for spotting WAF/block pages
	// ("Access Denied", "Just a moment...") in logs.
	Title string
}

// NewClient returns a retrying client suitable for scraping: a few retries
// on transient failures, no retry chatter on stdout.
func NewClient(timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = timeout
	return c
}

// SetupProxy routes a client through an HTTP proxy. Useful for debugging
// supplier scrapers through an intercepting proxy.
func SetupProxy(c *retryablehttp.Client, proxy string) error {
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	c.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return nil
}

// Fetch issues one request and reads the full body. A non-2xx status is an
// error: callers treat it as a scraper-level fetch failure, distinct from a
// parsed page with zero results.
func Fetch(ctx context.Context, wReq *Request, client *retryablehttp.Client) (*Response, error) {
	if client == nil {
		client = NewClient(wReq.Timeout)
	}
	if wReq.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wReq.Timeout)
		defer cancel()
	}

	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &Response{
		StatusCode: resp.StatusCode,
		Body:       string(bodyBytes),
	}
	if title, ok := htmlTitle(wRes.Body); ok {
		wRes.Title = strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wRes, fmt.Errorf("unexpected status %d for %s (title: %q)", resp.StatusCode, wReq.URL, wRes.Title)
	}
	return wRes, nil
}

func htmlTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}

func traverse(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := traverse(c); ok {
			return title, ok
		}
	}
	return "", false
}
