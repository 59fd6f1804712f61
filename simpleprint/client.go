package simpleprint

import (
	"bytes"
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

// Client wraps the SimplePrint API. The print service meters by the minute,
// so the limiter interval is minute/rate.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time
}

const maxAttempts = 3

func NewClient(token string) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("SIMPLEPRINT_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.simpleprint.io/v1"
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("simpleprint api token is empty")
	}
	ratePerMin := int64(180)
	if v := strings.TrimSpace(os.Getenv("SIMPLEPRINT_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ratePerMin = n
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(time.Minute / time.Duration(ratePerMin)),
	}, nil
}

// APIError is a non-2xx upstream response after retries are exhausted.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simpleprint api error %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, reqBody any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.limiter:
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

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

// GetFilesAndFolders lists the direct children of a folder; an empty parent
// means the root.
func (c *Client) GetFilesAndFolders(ctx context.Context, parent string) ([]RemoteFolder, []RemoteFile, error) {
	params := url.Values{}
	if parent != "" {
		params.Set("folder", parent)
	}
	body, err := c.do(ctx, http.MethodGet, "/files", params, nil)
	if err != nil {
		return nil, nil, err
	}

	var resp filesAndFoldersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, err
	}

	folders := make([]RemoteFolder, 0, len(resp.Folders))
	for _, rawFolder := range resp.Folders {
		var folder RemoteFolder
		if err := json.Unmarshal(rawFolder, &folder); err != nil {
			return nil, nil, err
		}
		folder.raw = rawFolder
		folders = append(folders, folder)
	}

	files := make([]RemoteFile, 0, len(resp.Files))
	for _, rawFile := range resp.Files {
		var file RemoteFile
		if err := json.Unmarshal(rawFile, &file); err != nil {
			return nil, nil, err
		}
		file.raw = rawFile
		files = append(files, file)
	}
	return folders, files, nil
}

// GetFolder fetches one folder's detail.
func (c *Client) GetFolder(ctx context.Context, folderId string) (*RemoteFolder, error) {
	body, err := c.do(ctx, http.MethodGet, "/folders/"+folderId, nil, nil)
	if err != nil {
		return nil, err
	}
	var folder RemoteFolder
	if err := json.Unmarshal(body, &folder); err != nil {
		return nil, err
	}
	folder.raw = body
	return &folder, nil
}

func (c *Client) ListPrinters(ctx context.Context) ([]RemotePrinter, error) {
	body, err := c.do(ctx, http.MethodGet, "/printers", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp printersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	printers := make([]RemotePrinter, 0, len(resp.Printers))
	for _, rawPrinter := range resp.Printers {
		var printer RemotePrinter
		if err := json.Unmarshal(rawPrinter, &printer); err != nil {
			return nil, err
		}
		printer.raw = rawPrinter
		printers = append(printers, printer)
	}
	return printers, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, callbackURL string, events string) (*RemoteWebhook, error) {
	body, err := c.do(ctx, http.MethodPost, "/webhooks", nil, map[string]string{
		"url":    callbackURL,
		"events": events,
	})
	if err != nil {
		return nil, err
	}
	var webhook RemoteWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]RemoteWebhook, error) {
	body, err := c.do(ctx, http.MethodGet, "/webhooks", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp webhooksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Webhooks, nil
}

// TriggerWebhook asks the upstream to send a test ping to a registered hook.
func (c *Client) TriggerWebhook(ctx context.Context, webhookId string) error {
	_, err := c.do(ctx, http.MethodPost, "/webhooks/"+webhookId+"/test", nil, nil)
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookId string) error {
	_, err := c.do(ctx, http.MethodDelete, "/webhooks/"+webhookId, nil, nil)
	return err
}
