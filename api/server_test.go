package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/pincex_points/api"
	apierrors "github.com/Aidin1998/pincex_points/common/errors"
	"github.com/Aidin1998/pincex_points/internal/point"
	"github.com/Aidin1998/pincex_points/internal/point/lockregistry"
	"github.com/Aidin1998/pincex_points/internal/point/store"
	"github.com/Aidin1998/pincex_points/pkg/models"
)

// helper to set up router on a real service with memory stores
func setupRouter(t *testing.T, opts ...point.Option) (*gin.Engine, *lockregistry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	locks := lockregistry.New()
	svc := point.NewService(zap.NewNop(), store.NewMemoryBalanceStore(), store.NewMemoryHistoryStore(), locks, opts...)
	return api.NewServer(zap.NewNop(), svc).Router(), locks
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "ok", resp["status"])
}

func TestGetPoint_Unknown(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/point/1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	p := decode[models.UserPoint](t, w)
	assert.Equal(t, models.UserPoint{ID: 1}, p)
}

func TestChargeUseAndHistory(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[models.UserPoint](t, w)
	assert.Equal(t, int64(1000), p.Point)
	assert.NotZero(t, p.UpdateMillis)

	w = doRequest(router, http.MethodPatch, "/point/1/use", map[string]int64{"amount": 300})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(700), decode[models.UserPoint](t, w).Point)

	w = doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, int64(700), decode[models.UserPoint](t, w).Point)

	w = doRequest(router, http.MethodGet, "/point/1/histories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	histories := decode[[]models.PointHistory](t, w)
	require.Len(t, histories, 2)
	assert.Equal(t, models.TransactionCharge, histories[0].Type)
	assert.Equal(t, int64(1000), histories[0].Amount)
	assert.Equal(t, models.TransactionUse, histories[1].Type)
	assert.Equal(t, int64(300), histories[1].Amount)
}

func TestGetHistories_Empty(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/point/5/histories", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestMutation_BadRequests(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		path string
		body any
		typ  string
	}{
		{"non numeric id", "/point/abc/charge", map[string]int64{"amount": 10}, apierrors.TypeValidationError},
		{"negative id", "/point/-1/charge", map[string]int64{"amount": 10}, apierrors.TypeValidationError},
		{"missing amount", "/point/1/charge", map[string]any{}, apierrors.TypeValidationError},
		{"malformed amount", "/point/1/charge", map[string]any{"amount": "ten"}, apierrors.TypeValidationError},
		{"zero amount", "/point/1/charge", map[string]int64{"amount": 0}, apierrors.TypeValidationError},
		{"negative amount", "/point/1/use", map[string]int64{"amount": -100}, apierrors.TypeValidationError},
		{"insufficient balance", "/point/1/use", map[string]int64{"amount": 100}, apierrors.TypeInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			pd := decode[apierrors.ProblemDetails](t, w)
			assert.Equal(t, tt.typ, pd.Type)
			assert.NotEmpty(t, pd.TraceID)
		})
	}

	w := doRequest(router, http.MethodGet, "/point/1/histories", nil)
	assert.JSONEq(t, "[]", w.Body.String(), "rejected requests leave no history")
}

func TestMutation_LockTimeout(t *testing.T) {
	router, locks := setupRouter(t, point.WithLockTimeout(20*time.Millisecond))

	h := locks.Acquire(1)
	require.True(t, h.TryLock())
	defer h.Unlock()

	w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 10})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apierrors.TypeLockTimeout, decode[apierrors.ProblemDetails](t, w).Type)
}

func TestConcurrentCharges(t *testing.T) {
	router, _ := setupRouter(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 100})
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	w := doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, int64(1000), decode[models.UserPoint](t, w).Point)

	w = doRequest(router, http.MethodGet, "/point/1/histories", nil)
	assert.Len(t, decode[[]models.PointHistory](t, w), 10)
}

func TestTraceIDPropagated(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPatch, "/point/1/use", bytes.NewBufferString(`{"amount":5}`))
	req.Header.Set("X-Trace-ID", "trace-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", w.Header().Get("X-Trace-ID"))
	assert.Equal(t, "trace-abc", decode[apierrors.ProblemDetails](t, w).TraceID)
}

func TestNoRoute(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodGet, "/points/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type failingPoints struct{ point.PointService }

func (failingPoints) GetBalance(context.Context, uint64) (*models.UserPoint, error) {
	return nil, apierrors.ErrStore.Explain("failed to read balance").Wrap(fmt.Errorf("dial tcp: refused"))
}

func TestGetPoint_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := api.NewServer(zap.NewNop(), failingPoints{}).Router()

	w := doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	pd := decode[apierrors.ProblemDetails](t, w)
	assert.Equal(t, apierrors.TypeStoreFailure, pd.Type)
	assert.NotContains(t, pd.Detail, "refused")
}

func TestConcurrentUses(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 1000})
	require.Equal(t, http.StatusOK, w.Code)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := doRequest(router, http.MethodPatch, "/point/1/use", map[string]int64{"amount": 100})
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	w = doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, int64(500), decode[models.UserPoint](t, w).Point)

	w = doRequest(router, http.MethodGet, "/point/1/histories", nil)
	histories := decode[[]models.PointHistory](t, w)
	require.Len(t, histories, 6)
	for _, h := range histories[1:] {
		assert.Equal(t, models.TransactionUse, h.Type)
	}
}

func TestConcurrentChargesAndUses(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 500})
	require.Equal(t, http.StatusOK, w.Code)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		path := "/point/1/charge"
		if i >= 8 {
			path = "/point/1/use"
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			w := doRequest(router, http.MethodPatch, path, map[string]int64{"amount": 100})
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}(path)
	}
	wg.Wait()

	w = doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, int64(900), decode[models.UserPoint](t, w).Point)

	w = doRequest(router, http.MethodGet, "/point/1/histories", nil)
	assert.Len(t, decode[[]models.PointHistory](t, w), 13)
}

func TestMutation_Interrupted(t *testing.T) {
	router, _ := setupRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPatch, "/point/1/charge", bytes.NewBufferString(`{"amount":10}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Equal(t, apierrors.TypeLockInterrupted, decode[apierrors.ProblemDetails](t, w).Type)

	w = doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Zero(t, decode[models.UserPoint](t, w).Point)
}

type failingHistories struct {
	*store.MemoryHistoryStore
}

func (failingHistories) Append(context.Context, uint64, int64, models.TransactionType, int64) (*models.PointHistory, error) {
	return nil, fmt.Errorf("history table unavailable")
}

func TestMutation_HistoryAppendFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := point.NewService(zap.NewNop(), store.NewMemoryBalanceStore(),
		failingHistories{store.NewMemoryHistoryStore()}, lockregistry.New())
	router := api.NewServer(zap.NewNop(), svc).Router()

	w := doRequest(router, http.MethodPatch, "/point/1/charge", map[string]int64{"amount": 10})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	pd := decode[apierrors.ProblemDetails](t, w)
	assert.Equal(t, apierrors.TypeHistoryAppend, pd.Type)
	assert.NotContains(t, pd.Detail, "history table unavailable")

	w = doRequest(router, http.MethodGet, "/point/1", nil)
	assert.Equal(t, int64(10), decode[models.UserPoint](t, w).Point, "the balance write stays committed")
}
