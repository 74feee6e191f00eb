package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/mocks"
	"lineup-chat/internal/models"
	"lineup-chat/internal/telemetry"
)

func TestGetProfile(t *testing.T) {
	env := setupRouter(t, 0)
	env.profiles.On("ResolveProfile", mock.Anything, "bo").Return(models.Profile{UserID: "bo", DisplayName: "Bo"}, nil)

	rec := env.do(http.MethodGet, "/api/profiles/bo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profile":{"user_id":"bo","display_name":"Bo"},"self":false}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/profiles/bo", "bo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"self":true`)
}

func TestGetProfileNotFound(t *testing.T) {
	env := setupRouter(t, 0)
	env.profiles.On("ResolveProfile", mock.Anything, "ghost").Return(nil, apperr.NotFound("profile not found")).Once()

	rec := env.do(http.MethodGet, "/api/profiles/ghost", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"not_found","message":"profile not found"}}`, rec.Body.String())
}

func TestDebugRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, nil, false)
	rec := httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil).Once()
	enabled := gin.New()
	RegisterDebugRoutes(enabled, telemetry.NewAuditEmitter(publisher, "audit.chat", "lineup-chat", "test"), true)
	rec = httptest.NewRecorder()
	enabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}
