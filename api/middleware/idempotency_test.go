package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func keyedRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest("", `{}`))
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Empty(t, rec.Header().Get(replayHeader))
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest("abc", `{"item":"1"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest("abc", `{"item":"1"}`))
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	require.Equal(t, "true", replay.Header().Get(replayHeader))
	require.JSONEq(t, `{"ok":true}`, replay.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest("xyz", `{"item":"1"}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("xyz", `{"item":"2"}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsRepeatWhileRunning(t *testing.T) {
	store := newFakeStore()
	var inner http.Handler
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// a retry lands while the first request is still inside the handler
		rec := httptest.NewRecorder()
		inner.ServeHTTP(rec, keyedRequest("slow", `{}`))
		require.Equal(t, http.StatusConflict, rec.Code)
		w.WriteHeader(http.StatusCreated)
	}))
	inner = handler

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("slow", `{}`))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest("retry", `{}`))
	require.Equal(t, http.StatusBadGateway, first.Code)
	require.Empty(t, store.data)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest("retry", `{}`))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyKeepsClientErrors(t *testing.T) {
	var calls int
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest("bad", `{}`))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	require.Equal(t, 1, calls)
}

func TestIdempotencyScopedPerUser(t *testing.T) {
	var calls int
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{uuid.NewString(), uuid.NewString()} {
		req := keyedRequest("same-key", `{}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestIdempotencyDisabledWithoutStore(t *testing.T) {
	called := false
	handler := Idempotency(nil, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest("", `{}`))
	require.True(t, called)
}
