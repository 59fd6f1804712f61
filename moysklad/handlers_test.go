package moysklad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/printforge/printflow_backend/syncsched"
)

type stubDispatcher struct {
	err        error
	lastSource string
	lastKind   string
	lastForce  bool
}

func (s *stubDispatcher) Trigger(ctx context.Context, source string, kind string, force bool) error {
	s.lastSource = source
	s.lastKind = kind
	s.lastForce = force
	return s.err
}

func (s *stubDispatcher) Cancel(source string) {}

func postTrigger(t *testing.T, dispatcher Dispatcher, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/sync/products", strings.NewReader(body))

	TriggerSyncHandler(dispatcher)(c)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response body %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestTriggerSyncHandlerAccepted(t *testing.T) {
	stub := &stubDispatcher{}
	w, _ := postTrigger(t, stub, `{"force":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if !stub.lastForce || stub.lastKind != "manual" {
		t.Fatalf("dispatcher called with kind=%q force=%v", stub.lastKind, stub.lastForce)
	}
}

func TestTriggerSyncHandlerCooldownHintInWholeSeconds(t *testing.T) {
	stub := &stubDispatcher{err: &syncsched.CooldownError{RetryAfter: 295 * time.Second}}
	w, resp := postTrigger(t, stub, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	hint, ok := resp["retry_after_seconds"].(float64)
	if !ok {
		t.Fatalf("retry_after_seconds missing or not numeric: %v", resp)
	}
	if hint != 295 {
		t.Fatalf("retry_after_seconds = %v, want 295", hint)
	}
}

func TestTriggerSyncHandlerAlreadyRunning(t *testing.T) {
	stub := &stubDispatcher{err: syncsched.ErrSyncAlreadyRunning}
	w, _ := postTrigger(t, stub, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestTriggerSyncHandlerRejectsBadKind(t *testing.T) {
	stub := &stubDispatcher{}
	w, _ := postTrigger(t, stub, `{"kind":"hourly"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if stub.lastKind != "" {
		t.Fatal("dispatcher must not be called for an invalid kind")
	}
}
