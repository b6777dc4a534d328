package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/handler"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type roomStub struct{}

func (roomStub) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	return []models.Room{{ID: "r1", Name: "Hall A"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (roomStub) Get(ctx context.Context, id string) (*models.Room, error) {
	return nil, errors.New("unused")
}

func (roomStub) Create(ctx context.Context, req service.CreateRoomRequest) (*models.Room, error) {
	return &models.Room{ID: "r2", Name: req.Name}, nil
}

func (roomStub) Update(ctx context.Context, id string, req service.UpdateRoomRequest) (*models.Room, error) {
	return nil, errors.New("unused")
}

func (roomStub) Delete(ctx context.Context, id string) error { return nil }

func newTestRouter(env string) http.Handler {
	cfg := &config.Config{Env: env, APIPrefix: "/api/v1/"}
	tokens := tokenStub{
		"admin": {UserID: "u-admin", Role: models.RoleAdmin},
		"staff": {UserID: "u-staff", Role: models.RoleStaff},
	}
	return New(Deps{Config: cfg, Logger: zap.NewNop(), Tokens: tokens}, Handlers{
		Auth:     handler.NewAuthHandler(nil),
		Rooms:    handler.NewRoomHandler(roomStub{}),
		Students: handler.NewStudentHandler(nil, nil),
		Seating:  handler.NewSeatingHandler(nil),
		Exports:  handler.NewExportHandler(nil),
		Metrics:  handler.NewMetricsHandler(nil, nil),
	})
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterProbesAreOpen(t *testing.T) {
	r := newTestRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)
	assert.NotEqual(t, http.StatusNotFound, serve(r, http.MethodGet, "/docs/index.html", "").Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	r := newTestRouter(config.EnvProduction)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/docs/index.html", "").Code)
}

func TestRouterEnforcesRoles(t *testing.T) {
	r := newTestRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/rooms", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/rooms", "forged").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/rooms", "staff").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/api/v1/rooms/r1", "staff").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/api/v1/rooms/r1", "admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/seating/save", "staff").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/seating-plans/p1/publish", "staff").Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	w := serve(newTestRouter(config.EnvDevelopment), http.MethodGet, "/api/v1/nope", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}

func TestAPIPrefix(t *testing.T) {
	assert.Equal(t, "/api/v1", apiPrefix(""))
	assert.Equal(t, "/api/v1", apiPrefix("/"))
	assert.Equal(t, "/api/v2", apiPrefix("api/v2/"))
}
