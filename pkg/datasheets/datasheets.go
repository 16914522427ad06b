// Package datasheets enriches match results with datasheet links, looked up
// by manufacturer part number against a JSON search API. Lookups are best
// effort: any failure yields an empty URL, never an error that could affect
// matching.
package datasheets

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/partscope/partscope/internal/utils"
	"github.com/partscope/partscope/pkg/whttp"
)

const defaultTimeout = 10 * time.Second

// Client queries a datasheet search endpoint. Endpoint must contain a
// {query} placeholder and return JSON with a result list; ResultPath and
// URLField describe where the datasheet link lives (gjson paths).
type Client struct {
	Endpoint   string
	ResultPath string // e.g. "results.0"
	URLField   string // e.g. "datasheet_url"
	Timeout    time.Duration
}

// Lookup returns a datasheet URL for the part number, or "" when the
// service is unconfigured, unreachable, or has no answer.
func (c *Client) Lookup(ctx context.Context, mpn string) string {
	if c == nil || c.Endpoint == "" || mpn == "" {
		return ""
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	reqURL := strings.ReplaceAll(c.Endpoint, "{query}", url.QueryEscape(mpn))

	res, err := whttp.Fetch(ctx, &whttp.Request{URL: reqURL, Timeout: timeout}, nil)
	if err != nil {
		utils.Log.Debugf("datasheet lookup for %s failed: %v", mpn, err)
		return ""
	}

	result := gjson.Get(res.Body, c.ResultPath)
	if !result.Exists() {
		return ""
	}
	link := result.Get(c.URLField).String()
	if _, err := url.ParseRequestURI(link); err != nil {
		return ""
	}
	return link
}
