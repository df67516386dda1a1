package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook/internal/domain/shared"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte) error       { return f.err }
func (f failingStore) Remove(context.Context, string) error            { return f.err }

var _ shared.Store = failingStore{}

func TestCompositeHealthChecker(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		status := NewCompositeHealthChecker("test").Check(context.Background())
		assert.True(t, status.Healthy)
		assert.Equal(t, "test", status.Version)
	})

	t.Run("all pass", func(t *testing.T) {
		hc := NewCompositeHealthChecker("test")
		hc.AddCheck("store", NewStoreCheck(failingStore{}))
		status := hc.Check(context.Background())
		assert.True(t, status.Healthy)
		assert.Equal(t, "OK", status.Checks["store"].Message)
	})

	t.Run("one fails", func(t *testing.T) {
		hc := NewCompositeHealthChecker("test")
		hc.AddCheck("store", NewStoreCheck(failingStore{err: errors.New("connection refused")}))
		hc.AddCheck("clock", func(context.Context) error { return nil })
		status := hc.Check(context.Background())
		assert.False(t, status.Healthy)
		assert.Equal(t, "Some checks failed: store", status.Message)
		assert.Equal(t, "connection refused", status.Checks["store"].Message)
		assert.True(t, status.Checks["clock"].Healthy)
	})

	t.Run("timeout", func(t *testing.T) {
		hc := NewCompositeHealthChecker("test")
		hc.SetTimeout(10 * time.Millisecond)
		hc.AddCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		status := hc.Check(context.Background())
		assert.False(t, status.Healthy)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too large")))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload_too_large")
}
