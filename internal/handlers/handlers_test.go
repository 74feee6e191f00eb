package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/conversation"
	"lineup-chat/internal/middleware"
	"lineup-chat/internal/mocks"
	"lineup-chat/internal/models"
)

const testUserHeader = "X-Test-User"

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) Upload(ctx context.Context, key string, contentType string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return f.PublicURL(key), nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

type testEnv struct {
	router      *gin.Engine
	store       *mocks.MemoryStore
	profiles    *mocks.ProfileRepositoryMock
	connections *mocks.ConnectionRepositoryMock
	objects     *fakeObjects
}

func testIdentity(c *gin.Context) {
	if user := c.GetHeader(testUserHeader); user != "" {
		middleware.SetUserID(c, user)
	}
	c.Next()
}

func setupRouter(t *testing.T, sendLimit uint) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:       mocks.NewMemoryStore(),
		profiles:    new(mocks.ProfileRepositoryMock),
		connections: new(mocks.ConnectionRepositoryMock),
		objects:     &fakeObjects{objects: map[string][]byte{}},
	}
	env.profiles.On("ResolveProfiles", mock.Anything, mock.Anything).Return([]models.Profile{
		{UserID: "ann", DisplayName: "Ann"},
		{UserID: "bo", DisplayName: "Bo"},
		{UserID: "cid", DisplayName: "Cid"},
	}, nil).Maybe()

	svc := conversation.NewService(env.store, env.store, env.profiles, nil)
	routes := Routes{
		Threads:      NewThreadHandler(svc, env.objects, nil),
		Messages:     NewMessageHandler(svc, nil),
		Connections:  NewConnectionHandler(env.connections, nil),
		Profiles:     NewProfileHandler(env.profiles),
		Auth:         testIdentity,
		OptionalAuth: testIdentity,
	}
	if sendLimit > 0 {
		routes.SendLimiter = MessageRateLimiter(sendLimit)
	}

	env.router = gin.New()
	routes.Register(env.router)
	return env
}

func (e *testEnv) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, rec).Error.Code
}
