package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type validatorStub struct {
	claims map[string]*models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v.claims[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func protectedRouter(roles ...models.UserRole) *gin.Engine {
	auth := validatorStub{claims: map[string]*models.JWTClaims{
		"admin-token":   {UserID: "u-admin", Role: models.RoleAdmin},
		"teacher-token": {UserID: "u-teacher", Role: models.RoleTeacher},
		"root-token":    {UserID: "u-root", Role: models.RoleSuperAdmin},
	}}
	r := gin.New()
	r.GET("/protected", JWT(auth), RequireRoles(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentClaims(c).UserID)
	})
	return r
}

func call(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := protectedRouter(models.RoleTeacher)

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer unknown"} {
		rec := call(r, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec), header)
	}
}

func TestRequireRoles(t *testing.T) {
	r := protectedRouter(models.RoleAdmin)

	rec := call(r, "Bearer admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-admin", rec.Body.String())

	rec = call(r, "bearer root-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(r, "Bearer teacher-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestRequireRolesWithoutJWT(t *testing.T) {
	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := call(r, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type observerStub struct {
	mu    sync.Mutex
	paths []string
	codes []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, method+" "+path)
	o.codes = append(o.codes, status)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/duty-schedules/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/duty-schedules/abc", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"GET /duty-schedules/:id", "GET unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNotFound}, obs.codes)
}

func TestMetricsNilObserver(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseMetaAndCacheHit(t *testing.T) {
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestSetCacheHitWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	SetCacheHit(c, false)
	assert.Equal(t, false, ExtractMeta(c)[cacheHitKey])
	assert.Nil(t, ExtractMeta(nil))
}

func TestAuditLogsSuccessfulMutations(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin})
	})
	r.POST("/duty-schedules/:id/publish", Audit(zap.New(core), "duty_schedule.publish"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.DELETE("/duty-schedules/:id", Audit(zap.New(core), "duty_schedule.delete"), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/duty-schedules/s1/publish", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/duty-schedules/s1", nil))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "duty_schedule.publish", fields["action"])
	assert.Equal(t, "s1", fields["resource_id"])
	assert.Equal(t, "u-admin", fields["user_id"])
}
