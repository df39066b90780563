package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_marketplace/app"
	"Gin_postgres_redis_marketplace/config"
	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/db/dbtest"
	"Gin_postgres_redis_marketplace/gateway"
	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/models"
	"Gin_postgres_redis_marketplace/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]string
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.byID[id]
	if !ok {
		return nil, session.ErrNoSession
	}
	return &session.AppSession{UserID: uid}, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type harness struct {
	r        *gin.Engine
	repo     *db.Repo
	sessions *fakeSessions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := db.NewRepo(dbtest.Open(t, db.Migrate), logger.Nop())
	sessions := &fakeSessions{byID: map[string]string{}}
	a := &app.App{
		Router:   gin.New(),
		Log:      logger.Nop(),
		Config:   config.Config{WebOrigin: "http://localhost:5173"},
		Repo:     repo,
		Gateway:  gateway.New(repo, nil, logger.Nop(), gateway.Options{PickupGrace: 30 * time.Minute}),
		Sessions: sessions,
	}
	RegisterRoutes(a.Router, a)
	return &harness{r: a.Router, repo: repo, sessions: sessions}
}

// login 建用户并返回会话 id
func (h *harness) login(t *testing.T, name string) (userID, sid string) {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), Username: name, DisplayName: name, IsVerified: true}
	require.NoError(t, h.repo.DB.Create(u).Error)
	sid = uuid.NewString()
	h.sessions.mu.Lock()
	h.sessions.byID[sid] = u.ID
	h.sessions.mu.Unlock()
	return u.ID, sid
}

func (h *harness) do(t *testing.T, sid, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: app.AppSessionCookie, Value: sid})
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	out := map[string]json.RawMessage{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func errCode(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()
	e := decode[struct {
		Code string `json:"code"`
	}](t, body["error"])
	return e.Code
}

func TestHealthzIsPublic(t *testing.T) {
	h := newHarness(t)
	w, body := h.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "true", string(body["ok"]))
}

func TestAPIRequiresSession(t *testing.T) {
	h := newHarness(t)
	w, body := h.do(t, "", http.MethodGet, "/api/transactions/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errCode(t, body))

	w, _ = h.do(t, "stale", http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWhoAmIAndLogout(t *testing.T) {
	h := newHarness(t)
	uid, sid := h.login(t, "ana")

	w, body := h.do(t, sid, http.MethodGet, "/session/whoami", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uid, decode[models.User](t, body["user"]).ID)

	w, _ = h.do(t, sid, http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), app.AppSessionCookie+"=;")

	w, _ = h.do(t, sid, http.MethodGet, "/session/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestItemEndpoints(t *testing.T) {
	h := newHarness(t)
	_, seller := h.login(t, "seller")
	_, other := h.login(t, "other")

	w, body := h.do(t, seller, http.MethodPost, "/api/items", map[string]any{
		"title": "Rice cooker", "category": "kitchen", "transaction_type": "donate",
		"municipality_id": "mun-1", "price_cents": 100,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errCode(t, body))

	w, body = h.do(t, seller, http.MethodPost, "/api/items", map[string]any{"title": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", errCode(t, body))

	w, body = h.do(t, seller, http.MethodPost, "/api/items", map[string]any{
		"title": "Rice cooker", "category": "kitchen", "transaction_type": "donate", "municipality_id": "mun-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	it := decode[models.Item](t, body["item"])
	assert.Equal(t, models.ItemAvailable, it.Status)

	w, body = h.do(t, other, http.MethodGet, "/api/items?municipality_id=mun-1&type=donate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Item](t, body["items"]), 1)

	w, body = h.do(t, other, http.MethodGet, "/api/items?type=barter", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, other, http.MethodGet, "/api/items/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.do(t, other, http.MethodDelete, "/api/items/"+it.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = h.do(t, seller, http.MethodGet, "/api/items/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]db.OwnerItemRow](t, body["items"]), 1)

	w, body = h.do(t, seller, http.MethodDelete, "/api/items/"+it.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ItemRemoved, decode[models.Item](t, body["item"]).Status)
}

func TestTransactionFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	sellerID, seller := h.login(t, "seller")
	_, buyer := h.login(t, "buyer")
	_, late := h.login(t, "late")

	price := int64(120000)
	it := &models.Item{OwnerID: sellerID, Title: "Bike", Category: "transport",
		TransactionType: models.TypeSell, PriceCents: &price, MunicipalityID: "mun-1"}
	require.NoError(t, h.repo.CreateItem(context.Background(), it))

	w, body := h.do(t, buyer, http.MethodPost, "/api/transactions", map[string]any{"item_id": it.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	tx := decode[models.Transaction](t, body["transaction"])
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, sellerID, tx.SellerID)

	w, body = h.do(t, late, http.MethodPost, "/api/transactions", map[string]any{"item_id": it.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errCode(t, body))

	w, _ = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", map[string]any{"pickup_location": "Town Hall"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", map[string]any{
		"pickup_at": time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339), "pickup_location": "Town Hall",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errCode(t, body))

	pickup := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", map[string]any{
		"pickup_at": pickup.Format(time.RFC3339), "pickup_location": "Town Hall",
	})
	require.Equal(t, http.StatusOK, w.Code)
	tx = decode[models.Transaction](t, body["transaction"])
	assert.Equal(t, models.StatusAwaitingBuyer, tx.Status)

	w, body = h.do(t, buyer, http.MethodGet, "/api/transactions/"+tx.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	actions := decode[[]models.Action](t, body["allowed_actions"])
	assert.Contains(t, actions, models.ActionConfirm)
	assert.Contains(t, actions, models.ActionBuyerReject)
	assert.NotContains(t, actions, models.ActionPropose)

	w, _ = h.do(t, late, http.MethodGet, "/api/transactions/"+tx.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/confirm", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errCode(t, body))

	for _, s := range []struct {
		sid, path string
		want      models.Status
	}{
		{buyer, "confirm", models.StatusAccepted},
		{seller, "handover-seller", models.StatusHandedOver},
		{buyer, "handover-buyer", models.StatusReceived},
		{buyer, "complete", models.StatusCompleted},
	} {
		w, body = h.do(t, s.sid, http.MethodPost, "/api/transactions/"+tx.ID+"/"+s.path, nil)
		require.Equal(t, http.StatusOK, w.Code, s.path)
		assert.Equal(t, s.want, decode[models.Transaction](t, body["transaction"]).Status)
	}

	w, body = h.do(t, buyer, http.MethodPost, "/api/transactions/"+tx.ID+"/dispute", map[string]any{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errCode(t, body))

	w, body = h.do(t, buyer, http.MethodGet, "/api/transactions/"+tx.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	audit := decode[[]models.AuditEntry](t, body["audit"])
	require.Len(t, audit, 6)
	assert.Equal(t, models.ActionCreate, audit[0].Action)
	assert.Equal(t, models.StatusCompleted, audit[5].ToStatus)

	w, body = h.do(t, seller, http.MethodGet, "/api/transactions/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Transaction](t, body["as_buyer"]))
	assert.Len(t, decode[[]models.Transaction](t, body["as_seller"]), 1)

	w, _ = h.do(t, buyer, http.MethodGet, "/api/transactions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisputeAndCancelOverHTTP(t *testing.T) {
	h := newHarness(t)
	sellerID, seller := h.login(t, "seller")
	_, buyer := h.login(t, "buyer")

	it := &models.Item{OwnerID: sellerID, Title: "Drill", Category: "tools",
		TransactionType: models.TypeLend, MunicipalityID: "mun-2"}
	require.NoError(t, h.repo.CreateItem(context.Background(), it))

	w, body := h.do(t, buyer, http.MethodPost, "/api/transactions", map[string]any{"item_id": it.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	tx := decode[models.Transaction](t, body["transaction"])

	w, body = h.do(t, buyer, http.MethodPost, "/api/transactions/"+tx.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCancelled, decode[models.Transaction](t, body["transaction"]).Status)

	w, body = h.do(t, buyer, http.MethodPost, "/api/transactions", map[string]any{"item_id": it.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	tx = decode[models.Transaction](t, body["transaction"])

	w, _ = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/dispute", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/dispute", map[string]any{"reason": "no-show"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[models.Transaction](t, body["transaction"])
	assert.Equal(t, models.StatusDisputed, out.Status)
	assert.Equal(t, "no-show", out.DisputeReason)

	w, _ = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	h := newHarness(t)
	_, buyer := h.login(t, "buyer")

	for _, c := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/transactions/abc", nil},
		{http.MethodGet, "/api/transactions/abc/audit", nil},
		{http.MethodPost, "/api/transactions/abc/confirm", nil},
		{http.MethodPost, "/api/transactions/abc/propose", map[string]any{"pickup_location": "x"}},
		{http.MethodPost, "/api/transactions/abc/dispute", nil},
		{http.MethodPost, "/api/transactions", map[string]any{"item_id": "abc"}},
		{http.MethodGet, "/api/items/abc", nil},
		{http.MethodDelete, "/api/items/abc", nil},
	} {
		w, body := h.do(t, buyer, c.method, c.path, c.body)
		assert.Equal(t, http.StatusNotFound, w.Code, c.method+" "+c.path)
		assert.Equal(t, "not_found", errCode(t, body), c.method+" "+c.path)
	}
}

func TestIdentityIsCheckedBeforeRequestBody(t *testing.T) {
	h := newHarness(t)
	sellerID, seller := h.login(t, "seller")
	_, buyer := h.login(t, "buyer")
	_, stranger := h.login(t, "stranger")

	it := &models.Item{OwnerID: sellerID, Title: "Tent", Category: "outdoor",
		TransactionType: models.TypeDonate, MunicipalityID: "mun-3"}
	require.NoError(t, h.repo.CreateItem(context.Background(), it))
	w, body := h.do(t, buyer, http.MethodPost, "/api/transactions", map[string]any{"item_id": it.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	tx := decode[models.Transaction](t, body["transaction"])

	// 空请求体：非当事人 403，错误角色 403，当事人 400
	w, body = h.do(t, stranger, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errCode(t, body))

	w, _ = h.do(t, buyer, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/propose", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", errCode(t, body))

	// 字段缺失走 Gateway 校验，同样排在身份检查之后
	w, _ = h.do(t, stranger, http.MethodPost, "/api/transactions/"+tx.ID+"/dispute", map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = h.do(t, seller, http.MethodPost, "/api/transactions/"+tx.ID+"/dispute", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errCode(t, body))

	w, body = h.do(t, buyer, http.MethodGet, "/api/transactions/"+tx.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.AuditEntry](t, body["audit"]), 1)
}
