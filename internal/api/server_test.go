package api

import (
	"bytes"
	"coachshare/backend/internal/config"
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/mail"
	"coachshare/backend/internal/notify"
	"coachshare/backend/internal/repository/memory"
	"coachshare/backend/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// captureMailer records every message instead of queueing it.
type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type testServer struct {
	router *gin.Engine
	mailer *captureMailer
	svc    Services
}

var testJWT = config.JWTConfig{
	Secret:     "api-test-secret",
	Expiration: time.Hour,
	CookieName: "coachshare_token",
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registerOnce.Do(func() { require.NoError(t, RegisterValidators()) })

	log := zap.NewNop()
	store := memory.NewStore()
	mailer := &captureMailer{}

	notifications := service.NewNotificationService(store.Notifications(), notify.NewNopPusher(), log)
	rel := service.NewRelationshipService(store.Users(), store.Regimens(), log)
	regimens := service.NewRegimenService(store.Regimens(), store.WorkoutLogs(), rel, notifications, log)
	svc := Services{
		Auth:          service.NewAuthService(store.Users(), rel, mailer, notifications, testJWT.Secret, testJWT.Expiration, "https://app.example.com", log),
		Regimens:      regimens,
		WorkoutLogs:   service.NewWorkoutLogService(store.WorkoutLogs(), store.Regimens(), store.Users(), notifications, log),
		Notifications: notifications,
		Achievements:  service.NewAchievementService(store.WorkoutLogs(), store.Users()),
		Reconcile:     service.NewReconcileService(store.Users(), store.Regimens(), store.WorkoutLogs(), nil, log),
	}
	svc.Users = service.NewUserService(store.Users(), store.Regimens(), store.WorkoutLogs(), store.Notifications(), rel, regimens, notifications, log)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	SetupRoutes(router, testJWT, svc)
	return &testServer{router: router, mailer: mailer, svc: svc}
}

// call sends a JSON request. token may be empty.
func (s *testServer) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signUp registers an account and logs in, returning its id and token.
func (s *testServer) signUp(t *testing.T, name, email string, role domain.Role) (string, string) {
	t.Helper()
	w := s.call(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": "password1", "role": role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[UserResponse](t, w)
	return user.ID, s.login(t, email, "password1")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.call(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[LoginResponse](t, w).Token
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	_, err := s.svc.Auth.CreateAdmin(context.Background(), "Admin", "admin@example.com", "password1")
	require.NoError(t, err)
	return s.login(t, "admin@example.com", "password1")
}

func tokenFromLink(t *testing.T, msg mail.Message) string {
	t.Helper()
	u, err := url.Parse(msg.Data["link"])
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}
