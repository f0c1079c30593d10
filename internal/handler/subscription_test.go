package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/newsletter/newsletter/internal/apperr"
	"github.com/newsletter/newsletter/internal/handler/dto"
	"github.com/newsletter/newsletter/internal/metrics"
	"github.com/newsletter/newsletter/internal/model"
	"github.com/newsletter/newsletter/internal/telemetry"
)

type insertCall struct {
	email string
	name  string
}

type fakeStore struct {
	mu    sync.Mutex
	calls []insertCall
	err   error
}

func (f *fakeStore) InsertSubscriber(ctx context.Context, email, name string) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, insertCall{email: email, name: name})
	if f.err != nil {
		return nil, f.err
	}
	return model.NewSubscriber(email, name, time.Now()), nil
}

func (f *fakeStore) Calls() []insertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]insertCall(nil), f.calls...)
}

type subscriptionEnv struct {
	handler  *SubscriptionHandler
	store    *fakeStore
	metrics  *metrics.InMemoryRecorder
	spans    *tracetest.SpanRecorder
	logs     *bytes.Buffer
	logMutex *sync.Mutex
}

func newSubscriptionEnv(t *testing.T, storeErr error) *subscriptionEnv {
	t.Helper()

	logs := &bytes.Buffer{}
	logMutex := &sync.Mutex{}
	logger := slog.New(slog.NewJSONHandler(lockedWriter{w: logs, mu: logMutex}, nil))

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := &fakeStore{err: storeErr}
	recorder := metrics.NewInMemory()

	return &subscriptionEnv{
		handler:  NewSubscriptionHandler(store, telemetry.NewTracer(tp, logger), recorder),
		store:    store,
		metrics:  recorder,
		spans:    spans,
		logs:     logs,
		logMutex: logMutex,
	}
}

func (e *subscriptionEnv) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.Subscribe(rec, req)
	return rec
}

func (e *subscriptionEnv) logOutput() string {
	e.logMutex.Lock()
	defer e.logMutex.Unlock()
	return e.logs.String()
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSubscribe_ValidFormReturns200(t *testing.T) {
	t.Parallel()

	env := newSubscriptionEnv(t, nil)

	rec := env.post("name=tiny%20cat&email=tiny_cat%40gmail.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, []insertCall{{email: "tiny_cat@gmail.com", name: "tiny cat"}}, env.store.Calls())

	snap := env.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.SubscriptionsCreated)
	assert.Equal(t, uint64(1), snap.InsertDurationCount)
}

func TestSubscribe_TrimsSurroundingWhitespace(t *testing.T) {
	t.Parallel()

	env := newSubscriptionEnv(t, nil)

	rec := env.post("name=%20tiny%20cat%20&email=%09tiny_cat%40gmail.com%20")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []insertCall{{email: "tiny_cat@gmail.com", name: "tiny cat"}}, env.store.Calls())
}

func TestSubscribe_InvalidFormReturns400(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing the email", "name=le%20guin", "email is required"},
		{"missing the name", "email=ursula_le_guin%40gmail.com", "name is required"},
		{"missing both name and email", "", "email is required; name is required"},
		{"empty email", "email=&name=le%20guin", "email is required"},
		{"blank name and email", "name=%20&email=%20%09", "email is required; name is required"},
		{"malformed encoding", "email=%zz&name=le%20guin", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newSubscriptionEnv(t, nil)

			rec := env.post(tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "the API did not fail with 400 when the payload was %s", tt.name)
			resp := decodeError(t, rec)
			assert.Equal(t, "INVALID_FORM", resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error)
			}
			assert.Empty(t, env.store.Calls(), "no database work on a malformed form")
			assert.Equal(t, uint64(1), env.metrics.Snapshot().SubscriptionsRejected)
		})
	}
}

func TestSubscribe_OversizedBodyReturns400(t *testing.T) {
	t.Parallel()

	env := newSubscriptionEnv(t, nil)

	body := "email=a%40b.c&name=" + strings.Repeat("x", 256)
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 64)

	env.handler.Subscribe(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body exceeds 64 bytes", decodeError(t, rec).Error)
	assert.Empty(t, env.store.Calls())
}

func TestSubscribe_PersistenceFailureReturns500(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind string
		wantLog  string
	}{
		{"database", apperr.Database("insert subscriber", errors.New(`relation "subscriptions" does not exist`)), "database", "does not exist"},
		{"not found", apperr.NotFound("insert subscriber", errors.New("no rows")), "not_found", "no rows"},
		{"untyped", errors.New(`relation "subscriptions" does not exist`), "internal", "does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newSubscriptionEnv(t, tt.err)

			rec := env.post("name=tiny%20cat&email=tiny_cat%40gmail.com")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "INTERNAL_ERROR", resp.Code)
			assert.Equal(t, "internal server error", resp.Error)
			assert.NotContains(t, rec.Body.String(), "subscriptions", "persistence detail must not leak")

			assert.Equal(t, uint64(1), env.metrics.Snapshot().SubscriptionsFailed[tt.wantKind])
			assert.Zero(t, env.metrics.Snapshot().SubscriptionsCreated)

			logs := env.logOutput()
			assert.Contains(t, logs, `"msg":"failed to add subscriber"`)
			assert.Contains(t, logs, `"error_kind":"`+tt.wantKind+`"`)
			assert.Contains(t, logs, tt.wantLog)
		})
	}
}

func TestSubscribe_StoreValidationErrorReturns400(t *testing.T) {
	t.Parallel()

	env := newSubscriptionEnv(t, apperr.Validation("insert subscriber", errors.New("email too long")))

	rec := env.post("name=tiny%20cat&email=tiny_cat%40gmail.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email too long", decodeError(t, rec).Error)
}

func TestSubscribe_Span(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		env := newSubscriptionEnv(t, nil)
		env.post("name=tiny%20cat&email=tiny_cat%40gmail.com")

		ended := env.spans.Ended()
		require.Len(t, ended, 1)
		span := ended[0]
		assert.Equal(t, "Adding a new subscriber", span.Name())
		assert.NotEqual(t, codes.Error, span.Status().Code)

		attrs := map[string]string{}
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsString()
		}
		assert.Equal(t, "tiny_cat@gmail.com", attrs["subscriber_email"])
		assert.Equal(t, "tiny cat", attrs["subscriber_name"])

		logs := env.logOutput()
		assert.Equal(t, 1, strings.Count(logs, `"msg":"span opened"`))
		assert.Equal(t, 1, strings.Count(logs, `"msg":"span closed"`))
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		env := newSubscriptionEnv(t, apperr.Database("insert subscriber", errors.New("connection reset")))
		env.post("name=tiny%20cat&email=tiny_cat%40gmail.com")

		ended := env.spans.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, codes.Error, ended[0].Status().Code)
		assert.Equal(t, 1, strings.Count(env.logOutput(), `"msg":"span closed"`))
	})

	t.Run("rejected form opens no span", func(t *testing.T) {
		t.Parallel()

		env := newSubscriptionEnv(t, nil)
		env.post("name=tiny%20cat")

		assert.Empty(t, env.spans.Ended())
	})
}

func TestSubscribe_Concurrent(t *testing.T) {
	t.Parallel()

	env := newSubscriptionEnv(t, nil)

	const n = 50
	var wg sync.WaitGroup
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			email := uuid.NewString() + "%40example.com"
			statuses <- env.post("name=someone&email=" + email).Code
		}()
	}
	wg.Wait()
	close(statuses)

	for code := range statuses {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, env.store.Calls(), n)
	assert.Equal(t, uint64(n), env.metrics.Snapshot().SubscriptionsCreated)
}
