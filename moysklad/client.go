package moysklad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client is the rate-limited MoySklad API client. One instance is shared per
// sync run; the limiter channel gates every outgoing request.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  <-chan time.Time
	pageSize int
}

const maxAttempts = 3

func NewClient(token string) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("MOYSKLAD_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.moysklad.ru/api/remap/1.2"
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("moysklad api token is empty")
	}
	ratePerSec := int64(5)
	if v := strings.TrimSpace(os.Getenv("MOYSKLAD_RATE_LIMIT_PER_SEC")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ratePerSec = n
		}
	}
	pageSize := 1000
	if v := strings.TrimSpace(os.Getenv("MOYSKLAD_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  time.Tick(time.Second / time.Duration(ratePerSec)),
		pageSize: pageSize,
	}, nil
}

// APIError is a non-2xx upstream response after retries are exhausted.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moysklad api error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure class would have been retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// getJSON performs one logical GET with up to three attempts. 429 honors
// Retry-After, 5xx backs off exponentially from one second, any other 4xx
// surfaces immediately.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.limiter:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json;charset=utf-8")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				if werr := sleepCtx(ctx, backoffDelay(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, lastErr
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if attempt < maxAttempts {
				if werr := sleepCtx(ctx, retryAfterDelay(resp, attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
		case resp.StatusCode >= 500:
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if attempt < maxAttempts {
				if werr := sleepCtx(ctx, backoffDelay(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
	}
	return nil, lastErr
}

func backoffDelay(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if v := strings.TrimSpace(resp.Header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return backoffDelay(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// listAll pages through a list endpoint until exhaustion.
func (c *Client) listAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	offset := 0
	for {
		page := url.Values{}
		for k, vs := range params {
			page[k] = vs
		}
		page.Set("limit", strconv.Itoa(c.pageSize))
		page.Set("offset", strconv.Itoa(offset))

		body, err := c.getJSON(ctx, path, page)
		if err != nil {
			return rows, err
		}
		var envelope listEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return rows, err
		}
		rows = append(rows, envelope.Rows...)
		if len(envelope.Rows) < c.pageSize {
			return rows, nil
		}
		offset += c.pageSize
	}
}

func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := c.listAll(ctx, "/entity/store", nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[Warehouse](rows)
}

func (c *Client) ListProductFolders(ctx context.Context) ([]ProductFolder, error) {
	rows, err := c.listAll(ctx, "/entity/productfolder", nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[ProductFolder](rows)
}

// ListProducts returns the full catalog, archived rows included; the caller
// decides what to skip.
func (c *Client) ListProducts(ctx context.Context) ([]ProductRow, error) {
	rows, err := c.listAll(ctx, "/entity/product", nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[ProductRow](rows)
}

// GetProductDetail fetches one product with its attributes expanded.
func (c *Client) GetProductDetail(ctx context.Context, productId string) (*ProductRow, error) {
	params := url.Values{}
	params.Set("expand", "attributes")
	body, err := c.getJSON(ctx, "/entity/product/"+productId, params)
	if err != nil {
		return nil, err
	}
	var row ProductRow
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// StockAll reads the stock report, zero-stock lines included, optionally
// restricted to one warehouse.
func (c *Client) StockAll(ctx context.Context, storeId string) ([]StockRow, error) {
	params := url.Values{}
	params.Set("includeZeroStocks", "true")
	if storeId != "" {
		params.Set("store.id", storeId)
	}
	rows, err := c.listAll(ctx, "/report/stock/all", params)
	if err != nil {
		return nil, err
	}
	return decodeRows[StockRow](rows)
}

// TurnoverAll reads the turnover report over [from, to].
func (c *Client) TurnoverAll(ctx context.Context, from, to time.Time) ([]TurnoverRow, error) {
	const momentLayout = "2006-01-02 15:04:05"
	params := url.Values{}
	params.Set("momentFrom", from.Format(momentLayout))
	params.Set("momentTo", to.Format(momentLayout))
	rows, err := c.listAll(ctx, "/report/turnover/all", params)
	if err != nil {
		return nil, err
	}
	return decodeRows[TurnoverRow](rows)
}

// ListProductImages enumerates the image metadata of one product.
func (c *Client) ListProductImages(ctx context.Context, productId string) ([]ImageRow, error) {
	rows, err := c.listAll(ctx, "/entity/product/"+productId+"/images", nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[ImageRow](rows)
}

// DownloadImage fetches an image binary by its absolute download href.
func (c *Client) DownloadImage(ctx context.Context, href string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.limiter:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return io.ReadAll(resp.Body)
}
