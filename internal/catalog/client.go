package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xcube-dev/stacube/internal/utils"
)

const defaultPageLimit = 100

// Client is a thin STAC-API search client. It only implements what the tile
// locator needs: POST /search with bbox/datetime/query filters and pagination.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a search client for a STAC API root url
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SearchRequest is a STAC item search
type SearchRequest struct {
	Collections []string
	Bbox        [4]float64
	// Datetime interval in STAC format ("start/end", either side may be "..")
	Datetime string
	// Query: equality filters on item properties
	Query map[string]string
	Limit int
}

type searchBody struct {
	Collections []string                          `json:"collections,omitempty"`
	Bbox        []float64                         `json:"bbox,omitempty"`
	Datetime    string                            `json:"datetime,omitempty"`
	Query       map[string]map[string]interface{} `json:"query,omitempty"`
	Limit       int                               `json:"limit,omitempty"`
}

type stacLink struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type featureCollection struct {
	Features []*Item    `json:"features"`
	Links    []stacLink `json:"links"`
}

// Search fetches all the items matching the request, following pagination links.
// I/O errors are classified with utils.Temporary.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]*Item, error) {
	body := searchBody{
		Collections: req.Collections,
		Bbox:        req.Bbox[:],
		Datetime:    req.Datetime,
		Limit:       req.Limit,
	}
	if body.Limit == 0 {
		body.Limit = defaultPageLimit
	}
	if len(req.Query) > 0 {
		body.Query = map[string]map[string]interface{}{}
		for prop, value := range req.Query {
			body.Query[prop] = map[string]interface{}{"eq": value}
		}
	}

	url := utils.URLJoin(c.baseURL, "search")
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("Search.Marshal: %w", err)
	}

	var items []*Item
	for url != "" {
		fc, err := c.searchPage(ctx, url, payload)
		if err != nil {
			return nil, fmt.Errorf("Search.%w", err)
		}
		items = append(items, fc.Features...)

		url, payload = "", nil
		for _, link := range fc.Links {
			if link.Rel != "next" {
				continue
			}
			url = link.Href
			if len(link.Body) > 0 {
				payload = link.Body
			}
			break
		}
	}
	return items, nil
}

func (c *Client) searchPage(ctx context.Context, url string, payload []byte) (*featureCollection, error) {
	var httpReq *http.Request
	var err error
	if payload != nil {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if httpReq != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("searchPage.NewRequest: %w", err)
	}
	httpReq.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, utils.MakeTemporary(fmt.Errorf("searchPage.Do: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("searchPage %s: %s (%s)", url, resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, utils.MakeTemporary(err)
		}
		return nil, err
	}

	fc := featureCollection{}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("searchPage.Decode: %w", err)
	}
	return &fc, nil
}
