package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bus_ticket/internal/mail"
	"bus_ticket/internal/middleware"
	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"
	"bus_ticket/internal/service"
	"bus_ticket/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminPhone = "01700000000"
	testResetBase  = "http://localhost:5173/reset-password/"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (q *captureQueue) Enqueue(_ context.Context, msg mail.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

type testServer struct {
	router *gin.Engine
	users  *repository.MemoryUserRepository
	buses  *repository.MemoryBusRepository
	queue  *captureQueue
	jwt    *utils.JWTUtil
}

func newTestServer(t *testing.T, routeEditPublic bool) *testServer {
	t.Helper()
	log := zap.NewNop()
	ts := &testServer{
		users: repository.NewMemoryUserRepository(),
		buses: repository.NewMemoryBusRepository(),
		queue: &captureQueue{},
		jwt:   utils.NewJWTUtil("handler-secret", time.Hour, 5*time.Minute),
	}

	authService := service.NewAuthService(ts.users, ts.jwt, testAdminPhone, log)
	resetService := service.NewPasswordResetService(ts.users, repository.NewMemoryConsumedTokenRepository(), ts.jwt, ts.queue, testResetBase, log)
	userService := service.NewUserService(ts.users)
	busService := service.NewBusService(ts.buses)

	jwtAuthMW := middleware.JWTAuthMiddleware(ts.jwt)
	adminMW := middleware.AdminMiddleware(ts.users, log)

	r := gin.New()
	NewHealthHandler(func(context.Context) error { return nil }, log).RegisterHealthRoutes(r)
	NewAuthHandler(authService, resetService, log).RegisterAuthRoutes(r, jwtAuthMW)
	NewUserHandler(authService, userService, log).RegisterUserRoutes(r, jwtAuthMW, adminMW)
	NewBusHandler(busService, log).RegisterBusRoutes(r, jwtAuthMW, adminMW, routeEditPublic)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts *testServer) signUpAndLogin(t *testing.T, phone, password, role string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": phone, "password": password, "role": role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"phone": phone, "password": password, "role": role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestEndToEnd_UserCannotUseAdminRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "123", "password": "p", "role": "user"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	signup := decode(t, w)
	assert.Equal(t, true, signup["acknowledged"])
	assert.NotEmpty(t, signup["insertedId"])

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"phone": "123", "password": "p", "role": "user"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode(t, w)
	assert.Equal(t, "Login successful", login["message"])
	token := login["token"].(string)

	claims, err := ts.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))

	w = ts.do(t, http.MethodGet, "/auth-status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isLoggedIn":true,"role":"user"}`, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/users/"+signup["insertedId"].(string), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodDelete, "/buses/anything", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_Failures(t *testing.T) {
	ts := newTestServer(t, false)
	ts.signUpAndLogin(t, "123", "secret", model.RoleUser)

	tests := []struct {
		name    string
		body    gin.H
		status  int
		message string
	}{
		{"unknown phone", gin.H{"phone": "999", "password": "secret", "role": "user"}, http.StatusUnauthorized, "User not found"},
		{"bad password", gin.H{"phone": "123", "password": "nope", "role": "user"}, http.StatusUnauthorized, "Invalid password"},
		{"role mismatch", gin.H{"phone": "123", "password": "secret", "role": "admin"}, http.StatusForbidden, "Access denied. Role does not match."},
		{"missing role", gin.H{"phone": "123", "password": "secret"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/login", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, w)["message"])
			}
		})
	}
}

func TestSignUp_Conflicts(t *testing.T) {
	ts := newTestServer(t, false)
	ts.signUpAndLogin(t, "123", "secret", model.RoleUser)

	w := ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "123", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "456", "password": "other", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "456", "password": "other", "role": "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthStatus_BadTokens(t *testing.T) {
	ts := newTestServer(t, false)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/auth-status", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/auth-status", "not.a.token", nil).Code)
}

func TestAdminUserManagement(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken := ts.signUpAndLogin(t, testAdminPhone, "admin-pass", model.RoleAdmin)
	userToken := ts.signUpAndLogin(t, "123", "secret", model.RoleUser)
	user, err := ts.users.FindByPhone(context.Background(), "123")
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
	assert.NotContains(t, w.Body.String(), "secret")

	w = ts.do(t, http.MethodPut, "/users/"+user.ID, userToken, gin.H{"name": "Rahim"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rahim", decode(t, w)["name"])

	admin, err := ts.users.FindByPhone(context.Background(), testAdminPhone)
	require.NoError(t, err)
	w = ts.do(t, http.MethodPut, "/users/"+admin.ID, userToken, gin.H{"name": "Mallory"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPatch, "/users/"+user.ID+"/role", adminToken, gin.H{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/users/"+user.ID+"/role", adminToken, gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	// the old token still says "user" but the stored role now grants admin routes
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/users", userToken, nil).Code)

	w = ts.do(t, http.MethodPatch, "/users/"+admin.ID+"/role", userToken, gin.H{"role": "user"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/users", adminToken, nil).Code)

	w = ts.do(t, http.MethodDelete, "/users/"+admin.ID, userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":1}`, w.Body.String())
}

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t, false)
	ts.signUpAndLogin(t, "123", "old-password", model.RoleUser)

	w := ts.do(t, http.MethodPost, "/forgetPassword", "", gin.H{"phone": "999", "email": "x@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/forgetPassword", "", gin.H{"phone": "123", "email": "rahim@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rahim@example.com", decode(t, w)["email"])

	require.Len(t, ts.queue.msgs, 1)
	body := ts.queue.msgs[0].Body
	start := strings.Index(body, testResetBase) + len(testResetBase)
	token := body[start : start+strings.Index(body[start:], `"`)]

	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": "again-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"phone": "123", "password": "old-password", "role": "user"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"phone": "123", "password": "new-password", "role": "user"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": "garbage", "newPassword": "new-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func createBus(t *testing.T, ts *testServer, adminToken string) (string, []model.Route) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/buses", adminToken, gin.H{
		"busName":    "Green Line",
		"totalSeats": 40,
		"routes": []gin.H{
			{"routeName": "Dhaka", "price": 0},
			{"routeName": "Cumilla", "price": 350},
			{"routeName": "Chattogram", "price": 700},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	busID := decode(t, w)["insertedId"].(string)

	w = ts.do(t, http.MethodGet, "/routes/"+busID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var routes []model.Route
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routes))
	return busID, routes
}

func TestRoutes_EditAndDelete(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken := ts.signUpAndLogin(t, testAdminPhone, "admin-pass", model.RoleAdmin)
	userToken := ts.signUpAndLogin(t, "123", "secret", model.RoleUser)
	busID, routes := createBus(t, ts, adminToken)
	require.Len(t, routes, 3)

	w := ts.do(t, http.MethodPut, "/routes/"+busID+"/1", "", gin.H{"routeName": "Feni", "price": 420})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(t, http.MethodPut, "/routes/"+busID+"/1", userToken, gin.H{"routeName": "Feni", "price": 420})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, "/routes/"+busID+"/1", adminToken, gin.H{"routeName": "Feni", "price": 420})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Route updated successfully"}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/routes/"+busID+"/7", adminToken, gin.H{"routeName": "Feni", "price": 420})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	for _, idx := range []string{"-1", "one"} {
		w = ts.do(t, http.MethodPut, "/routes/"+busID+"/"+idx, adminToken, gin.H{"routeName": "Feni", "price": 420})
		assert.Equal(t, http.StatusBadRequest, w.Code, idx)
		w = ts.do(t, http.MethodDelete, "/routes/"+busID+"/"+idx, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, idx)
	}

	w = ts.do(t, http.MethodDelete, "/routes/"+busID+"/1?routeId="+routes[2].ID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodDelete, "/routes/"+busID+"/1", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Route deleted successfully","deletedCount":1}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/routes/"+busID, "", nil)
	var after []model.Route
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, []model.Route{routes[0], routes[2]}, after)

	w = ts.do(t, http.MethodDelete, "/routes/"+busID+"/5", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, "/routes/missing/0", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_PublicEdit(t *testing.T) {
	ts := newTestServer(t, true)
	adminToken := ts.signUpAndLogin(t, testAdminPhone, "admin-pass", model.RoleAdmin)
	busID, _ := createBus(t, ts, adminToken)

	w := ts.do(t, http.MethodPut, "/routes/"+busID+"/0", "", gin.H{"routeName": "Gabtoli", "price": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	// delete stays admin-only
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodDelete, "/routes/"+busID+"/0", "", nil).Code)
}

func TestBuses_CRUD(t *testing.T) {
	ts := newTestServer(t, false)
	adminToken := ts.signUpAndLogin(t, testAdminPhone, "admin-pass", model.RoleAdmin)
	busID, _ := createBus(t, ts, adminToken)

	w := ts.do(t, http.MethodGet, "/buses", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var buses []model.Bus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &buses))
	require.Len(t, buses, 1)
	assert.Equal(t, "Green Line", buses[0].BusName)

	w = ts.do(t, http.MethodPost, "/routes/"+busID, adminToken, gin.H{"routeName": "Cox's Bazar", "price": 1100})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["id"])

	w = ts.do(t, http.MethodDelete, "/buses/"+busID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":1}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/buses/"+busID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/routes/"+busID, "", nil).Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bus-ticket is running", w.Body.String())

	r := gin.New()
	NewHealthHandler(func(context.Context) error { return errors.New("down") }, zap.NewNop()).RegisterHealthRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestForgetPassword_EmailMustMatchAccount(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "555", "password": "victim-pass", "email": "victim@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/forgetPassword", "", gin.H{"phone": "555", "email": "attacker@evil.test"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["message"])
	assert.Empty(t, ts.queue.msgs)

	w = ts.do(t, http.MethodPost, "/forgetPassword", "", gin.H{"phone": "555", "email": "victim@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.queue.msgs, 1)
	assert.Equal(t, "victim@example.com", ts.queue.msgs[0].To)
}

func TestPasswordLengthLimit(t *testing.T) {
	ts := newTestServer(t, false)
	long := strings.Repeat("x", 80)

	w := ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "777", "password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 40 characters but 120 bytes
	w = ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "777", "password": strings.Repeat("€", 40)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/users", "", gin.H{"phone": "777", "password": strings.Repeat("x", 72)})
	assert.Equal(t, http.StatusOK, w.Code)

	user, err := ts.users.FindByPhone(context.Background(), "777")
	require.NoError(t, err)
	token, _, _, err := ts.jwt.GenerateResetToken(user.ID, user.Role)
	require.NoError(t, err)
	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": long})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": strings.Repeat("€", 40)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// rejected attempts do not burn the token
	w = ts.do(t, http.MethodPost, "/resetPassword", "", gin.H{"token": token, "newPassword": "fresh-password"})
	assert.Equal(t, http.StatusOK, w.Code)
}
