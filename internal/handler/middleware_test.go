package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newActorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api/v1")
	api.Use(ActorMiddleware())
	api.GET("/whoami", func(c *gin.Context) {
		response.Success(c, gin.H{"user_id": actorID(c)})
	})

	admin := api.Group("/admin")
	admin.Use(RequireRole(roleAdmin))
	admin.POST("/wallet/status", func(c *gin.Context) {
		response.Success(c, nil)
	})

	return r
}

func doRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelopeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestActorMiddleware(t *testing.T) {
	r := newActorRouter()

	// 缺少身份头
	w := doRequest(r, http.MethodGet, "/api/v1/whoami", nil)
	require.Equal(t, response.CodeUnauthorized, envelopeCode(t, w))

	// 身份头不是数字
	w = doRequest(r, http.MethodGet, "/api/v1/whoami", map[string]string{"X-User-ID": "abc"})
	require.Equal(t, response.CodeUnauthorized, envelopeCode(t, w))

	// 非正数
	w = doRequest(r, http.MethodGet, "/api/v1/whoami", map[string]string{"X-User-ID": "0"})
	require.Equal(t, response.CodeUnauthorized, envelopeCode(t, w))

	w = doRequest(r, http.MethodGet, "/api/v1/whoami", map[string]string{"X-User-ID": "7"})
	require.Equal(t, response.CodeSuccess, envelopeCode(t, w))
}

func TestAdminRouteRequiresRole(t *testing.T) {
	r := newActorRouter()

	// 不带角色头
	w := doRequest(r, http.MethodPost, "/api/v1/admin/wallet/status", map[string]string{"X-User-ID": "7"})
	require.Equal(t, response.CodeForbidden, envelopeCode(t, w))

	// 普通用户角色
	w = doRequest(r, http.MethodPost, "/api/v1/admin/wallet/status", map[string]string{
		"X-User-ID": "7", "X-User-Role": "user",
	})
	require.Equal(t, response.CodeForbidden, envelopeCode(t, w))

	// 管理员放行
	w = doRequest(r, http.MethodPost, "/api/v1/admin/wallet/status", map[string]string{
		"X-User-ID": "7", "X-User-Role": "admin",
	})
	require.Equal(t, response.CodeSuccess, envelopeCode(t, w))
}
