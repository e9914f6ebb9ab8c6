package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PageCall describes one request in a paginated listing.
type PageCall struct {
	// Method defaults to GET.
	Method string
	// URL is the request URL, without the Query portion below.
	URL string
	// Header is sent unchanged on every page request.
	Header http.Header
	// Query is appended to URL; continuation strategies may rewrite it
	// between pages.
	Query url.Values
}

// Page is one raw response in a paginated listing.
type Page struct {
	Header http.Header
	Body   []byte
}

// Continuation determines how a paginated listing extracts items from a
// page and locates the following page. Returning ok=false from Next ends
// the sequence.
type Continuation interface {
	Items(page *Page) ([]json.RawMessage, error)
	Next(call PageCall, page *Page) (next PageCall, ok bool)
}

// BodyCursor follows pagination where the response body embeds the next
// page's absolute URL: {"results": [...], "paging": {"nextPage": url}}.
type BodyCursor struct{}

func (BodyCursor) Items(page *Page) ([]json.RawMessage, error) {
	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(page.Body, &envelope); err != nil {
		return nil, fmt.Errorf("decode results page: %w", err)
	}
	return envelope.Results, nil
}

func (BodyCursor) Next(call PageCall, page *Page) (PageCall, bool) {
	var envelope struct {
		Paging struct {
			NextPage string `json:"nextPage"`
		} `json:"paging"`
	}
	if err := json.Unmarshal(page.Body, &envelope); err != nil {
		return PageCall{}, false
	}
	if envelope.Paging.NextPage == "" {
		return PageCall{}, false
	}
	// nextPage is absolute and carries its own query string.
	call.URL = envelope.Paging.NextPage
	call.Query = nil
	return call, true
}

// LinkHeader follows pagination where the response body is a JSON array
// and the next page's URL rides in an HTTP Link header with rel="next".
type LinkHeader struct{}

func (LinkHeader) Items(page *Page) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(page.Body, &items); err != nil {
		return nil, fmt.Errorf("decode results page: %w", err)
	}
	return items, nil
}

func (LinkHeader) Next(call PageCall, page *Page) (PageCall, bool) {
	next := nextLinkURL(page.Header.Get("Link"))
	if next == "" {
		return PageCall{}, false
	}
	call.URL = next
	call.Query = nil
	return call, true
}

// nextLinkURL extracts the rel="next" target from a Link header value,
// returning "" when no such segment exists.
func nextLinkURL(link string) string {
	for _, segment := range strings.Split(link, ",") {
		parts := strings.Split(segment, ";")
		if len(parts) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		for _, param := range parts[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target
			}
		}
	}
	return ""
}

// CursorParam follows pagination where the response body carries an
// opaque cursor in response_metadata.next_cursor and the client echoes it
// back as a request parameter. An absent or empty cursor ends the
// sequence.
type CursorParam struct {
	// ItemsKey is the body key holding the result array.
	ItemsKey string
	// Param is the request parameter carrying the cursor; defaults to
	// "cursor".
	Param string
}

func (c CursorParam) Items(page *Page) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(page.Body, &envelope); err != nil {
		return nil, fmt.Errorf("decode results page: %w", err)
	}
	raw, ok := envelope[c.ItemsKey]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q items: %w", c.ItemsKey, err)
	}
	return items, nil
}

func (c CursorParam) Next(call PageCall, page *Page) (PageCall, bool) {
	var envelope struct {
		ResponseMetadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	if err := json.Unmarshal(page.Body, &envelope); err != nil {
		return PageCall{}, false
	}
	cursor := envelope.ResponseMetadata.NextCursor
	if cursor == "" {
		return PageCall{}, false
	}
	param := c.Param
	if param == "" {
		param = "cursor"
	}
	query := url.Values{}
	for k, vs := range call.Query {
		query[k] = vs
	}
	query.Set(param, cursor)
	call.Query = query
	return call, true
}

// Pager is a lazy, forward-only iterator over a paginated listing. It
// issues the first request on the first call to Next and continues until
// the server's own end-of-pages signal. Pagers never cache: building a
// new Pager restarts the listing from the first request.
//
// Usage follows the bufio.Scanner shape:
//
//	for pager.Next() {
//	    item := pager.Item()
//	    ...
//	}
//	if err := pager.Err(); err != nil { ... }
type Pager struct {
	ctx      context.Context
	client   *Client
	strategy Continuation

	call    PageCall
	pending bool
	buf     []json.RawMessage
	item    json.RawMessage
	err     error
}

// Paginate builds a Pager for the listing starting at first, continued
// according to strategy.
func (c *Client) Paginate(ctx context.Context, strategy Continuation, first PageCall) *Pager {
	return &Pager{
		ctx:      ctx,
		client:   c,
		strategy: strategy,
		call:     first,
		pending:  true,
	}
}

// Next advances to the next item, fetching further pages as needed.
// It returns false at the end of the listing or on the first error.
func (p *Pager) Next() bool {
	if p.err != nil {
		return false
	}
	for len(p.buf) == 0 {
		if !p.pending {
			return false
		}
		if err := p.fetch(); err != nil {
			p.err = err
			return false
		}
	}
	p.item = p.buf[0]
	p.buf = p.buf[1:]
	return true
}

// Item returns the item produced by the last successful call to Next.
func (p *Pager) Item() json.RawMessage {
	return p.item
}

// Err returns the first error encountered while paging, if any.
func (p *Pager) Err() error {
	return p.err
}

// Collect drains the pager into a slice.
func (p *Pager) Collect() ([]json.RawMessage, error) {
	var items []json.RawMessage
	for p.Next() {
		items = append(items, p.Item())
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// fetch issues the pending page request and refills the item buffer.
func (p *Pager) fetch() error {
	method := p.call.Method
	if method == "" {
		method = http.MethodGet
	}

	rawURL := p.call.URL
	if len(p.call.Query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + p.call.Query.Encode()
	}

	header, body, err := p.client.Do(p.ctx, method, rawURL, p.call.Header, nil)
	if err != nil {
		return err
	}

	page := &Page{Header: header, Body: body}
	items, err := p.strategy.Items(page)
	if err != nil {
		return err
	}
	p.buf = items

	next, ok := p.strategy.Next(p.call, page)
	if ok {
		p.call = next
	}
	p.pending = ok
	return nil
}

// CollectAs drains a pager, decoding every item into T. Unknown item
// fields are ignored.
func CollectAs[T any](p *Pager) ([]T, error) {
	var out []T
	for p.Next() {
		var item T
		if err := json.Unmarshal(p.Item(), &item); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		out = append(out, item)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
