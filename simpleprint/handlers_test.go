package simpleprint

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
	err    error
	called bool
}

func (s *stubDispatcher) Trigger(ctx context.Context, source string, kind string, force bool) error {
	s.called = true
	return s.err
}

func postFileSync(t *testing.T, dispatcher Dispatcher, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/sync/print/files", strings.NewReader(body))

	TriggerFileSyncHandler(dispatcher)(c)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response body %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestFileSyncHandlerArmsFullSyncOnAcceptedTrigger(t *testing.T) {
	ConsumeFullSyncRequest() // reset

	w, _ := postFileSync(t, &stubDispatcher{}, `{"full_sync":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if !ConsumeFullSyncRequest() {
		t.Fatal("accepted trigger must leave the full-sync request armed")
	}
	if ConsumeFullSyncRequest() {
		t.Fatal("consuming the request must clear it")
	}
}

func TestFileSyncHandlerDisarmsFullSyncOnRefusedTrigger(t *testing.T) {
	ConsumeFullSyncRequest() // reset

	stub := &stubDispatcher{err: syncsched.ErrSyncAlreadyRunning}
	w, _ := postFileSync(t, stub, `{"full_sync":true}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if ConsumeFullSyncRequest() {
		t.Fatal("refused trigger must not leave the full-sync request armed for the next scheduled run")
	}
}

func TestFileSyncHandlerCooldownHintInWholeSeconds(t *testing.T) {
	ConsumeFullSyncRequest() // reset

	stub := &stubDispatcher{err: &syncsched.CooldownError{RetryAfter: 4500 * time.Millisecond}}
	w, resp := postFileSync(t, stub, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	hint, ok := resp["retry_after_seconds"].(float64)
	if !ok {
		t.Fatalf("retry_after_seconds missing or not numeric: %v", resp)
	}
	if hint != 5 {
		t.Fatalf("retry_after_seconds = %v, want 5 (rounded up)", hint)
	}
}
