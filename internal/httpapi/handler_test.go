package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/config"
	"paz-rewards/pkg/health"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
	"paz-rewards/services/promo"
	"paz-rewards/services/redemption"
	"paz-rewards/services/task"
	"paz-rewards/services/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	zap.ReplaceGlobals(zap.NewNop())
}

const adminToken = "test-admin-token"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&account.Account{},
		&ledger.Transaction{},
		&promo.PromoCode{},
		&promo.Redemption{},
		&redemption.Request{},
		&redemption.Availability{},
		&task.Task{},
		&task.Completion{},
	)
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	lsvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	accounts := account.NewService(account.ServiceParams{DB: db, Node: node, Ledger: lsvc, Threshold: 10})
	promos := promo.NewService(promo.ServiceParams{DB: db, Node: node, Ledger: lsvc})
	tasks := task.NewService(task.ServiceParams{DB: db, Node: node, Ledger: lsvc, QuizQuota: 10})
	redemptions := redemption.NewService(redemption.ServiceParams{
		DB:               db,
		Node:             node,
		Ledger:           lsvc,
		ActivationExpiry: 30 * 24 * time.Hour,
	})

	h := NewHandler(HandlerParams{
		Accounts:    accounts,
		Ledger:      lsvc,
		Promos:      promos,
		Redemptions: redemptions,
		Tasks:       tasks,
		Health:      health.New(health.Params{DB: db}),
	})

	cfg := &config.Config{}
	cfg.Admin.Tokens = map[string]string{adminToken: "ops"}

	engine := gin.New()
	Register(engine, h, cfg)

	return engine, db
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + adminToken}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestRegisterAndGetProfile(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/register", gin.H{"email": "player@example.com"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	rec = doJSON(t, engine, http.MethodGet, "/api/profile/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/register", gin.H{"email": "player@example.com"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorEnvelope(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/profile/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "NOT_FOUND", envelope["code"])
	require.Equal(t, "profile not found", envelope["message"])
}

func TestAdminAuth(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/admin/promo?action=list", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/admin/promo?action=list", nil, map[string]string{
		"Authorization": "Basic abc",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/admin/promo?action=list", nil, map[string]string{
		"Authorization": "Bearer wrong-token",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/admin/promo?action=list", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUnknownAction(t *testing.T) {
	engine, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/admin/promo?action=bogus",
		"/api/admin/redemptions?action=bogus",
		"/api/admin/availability?action=bogus",
		"/api/admin/tasks?action=bogus",
	} {
		rec := doJSON(t, engine, http.MethodGet, path, nil, adminHeaders())
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestPromoRedeemFlow(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/register", gin.H{"email": "player@example.com"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	accountID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, engine, http.MethodPost, "/api/admin/promo?action=create", gin.H{
		"code":   "WELCOME",
		"points": 100,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/promo/redeem", gin.H{
		"account_id": accountID,
		"code":       "welcome",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/promo/redeem", gin.H{
		"account_id": accountID,
		"code":       "welcome",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/profile/"+accountID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(100), decodeBody(t, rec)["points"])
}

func TestRedemptionFlow(t *testing.T) {
	engine, db := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/register", gin.H{"email": "player@example.com"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	accountID := decodeBody(t, rec)["id"].(string)

	require.NoError(t, db.Model(&account.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"points": 500, "total_earned": 500}).Error)

	require.NoError(t, db.Create(&redemption.Availability{
		ID:             "avail-1",
		SubscriptionID: "spotify",
		Duration:       "1m",
		PointCost:      150,
		InStock:        true,
	}).Error)

	rec = doJSON(t, engine, http.MethodPost, "/api/redemptions", gin.H{
		"account_id":      accountID,
		"subscription_id": "spotify",
		"duration":        "1m",
		"contact_email":   "player@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var req redemption.Request
	require.NoError(t, db.First(&req, "account_id = ?", accountID).Error)
	require.Equal(t, redemption.StatusPending, req.Status)

	rec = doJSON(t, engine, http.MethodPost, "/api/admin/redemptions?action=update", gin.H{
		"request_id":      req.ID,
		"status":          "completed",
		"activation_code": "CODE-1",
	}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/redemptions?account_id="+accountID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/profile/"+accountID, nil, nil)
	require.Equal(t, float64(350), decodeBody(t, rec)["points"])
}

func TestTaskFlow(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/register", gin.H{"email": "player@example.com"}, nil)
	accountID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, engine, http.MethodPost, "/api/admin/tasks?action=create", gin.H{
		"title":  "Watch an ad",
		"kind":   "ad",
		"points": 5,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)
	taskID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, engine, http.MethodGet, "/api/tasks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/tasks/complete", gin.H{
		"account_id": accountID,
		"task_id":    taskID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/quiz/allowance/"+accountID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(10), decodeBody(t, rec)["quota"])

	rec = doJSON(t, engine, http.MethodGet, "/api/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidBodyReturnsBadRequest(t *testing.T) {
	engine, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
