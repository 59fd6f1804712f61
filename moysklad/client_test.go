package moysklad

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestClient(t *testing.T, baseURL string, pageSize int) *Client {
	t.Helper()
	t.Setenv("MOYSKLAD_API_BASE_URL", baseURL)
	t.Setenv("MOYSKLAD_RATE_LIMIT_PER_SEC", "1000")
	t.Setenv("MOYSKLAD_PAGE_SIZE", strconv.Itoa(pageSize))
	client, err := NewClient("test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestListAllPaginates(t *testing.T) {
	const total = 7
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		fmt.Fprint(w, `{"meta":{"size":7},"rows":[`)
		first := true
		for i := offset; i < total && i < offset+limit; i++ {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"meta":{"href":"https://x/entity/store/id-%d"},"name":"w%d"}`, i, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	warehouses, err := client.ListWarehouses(context.Background())
	if err != nil {
		t.Fatalf("ListWarehouses: %v", err)
	}
	if len(warehouses) != total {
		t.Fatalf("got %d warehouses, want %d", len(warehouses), total)
	}
	if requests != 3 {
		t.Fatalf("got %d page requests, want 3", requests)
	}
	if warehouses[6].Meta.ID() != "id-6" {
		t.Fatalf("last warehouse id = %q", warehouses[6].Meta.ID())
	}
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"meta":{"size":0},"rows":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100)
	if _, err := client.ListProducts(context.Background()); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("got %d attempts, want 2", attempts)
	}
}

func TestClientErrorSurfacesImmediately(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"errors":[{"error":"bad token"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100)
	_, err := client.ListProducts(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Temporary() {
		t.Fatal("401 must not be retryable")
	}
	if attempts != 1 {
		t.Fatalf("got %d attempts, want 1 (no retry on 4xx)", attempts)
	}
}

func TestServerErrorRetriesUntilExhausted(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.ListProducts(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", apiErr.StatusCode)
	}
	if attempts != maxAttempts {
		t.Fatalf("got %d attempts, want %d", attempts, maxAttempts)
	}
}

func TestGetProductDetailExpandsAttributes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entity/product/prod-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("expand"); got != "attributes" {
			t.Errorf("expand = %q", got)
		}
		fmt.Fprint(w, `{"meta":{"href":"https://x/entity/product/prod-1"},
			"name":"Vase","article":"VA-01",
			"attributes":[{"name":"Цвет","value":"Black"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100)
	detail, err := client.GetProductDetail(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetProductDetail: %v", err)
	}
	if got := ExtractAttributeString(detail.Attributes, "Цвет"); got != "Black" {
		t.Fatalf("color attribute = %q, want %q", got, "Black")
	}
}
