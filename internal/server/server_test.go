package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"complaintrack/server/internal/chat"
	chatdomain "complaintrack/server/internal/chat/domain"
	"complaintrack/server/internal/config"
	"complaintrack/server/internal/dispatch"
	identitydomain "complaintrack/server/internal/identity/domain"
	"complaintrack/server/internal/identity/service"
	"complaintrack/server/internal/policy/engine"
	"complaintrack/server/internal/presence"
	"complaintrack/server/internal/realtime"
	"complaintrack/server/internal/security"
	"complaintrack/server/internal/session"
	sessiondomain "complaintrack/server/internal/session/domain"
)

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*sessiondomain.Session)}
}

func (m *mockSessionRepo) GetActiveByToken(ctx context.Context, token string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSessionRepo) ListActive(ctx context.Context) ([]*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range m.sessions {
		if s.ExpiresAt.After(time.Now()) {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.sessions[s.Token] = &copied
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(time.Now()) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

type mockUserRepo struct {
	mu     sync.Mutex
	users  []*identitydomain.User
	nextID int
}

func (m *mockUserRepo) GetByEmailOrPhone(ctx context.Context, value string) (*identitydomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == value || u.Phone == value {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, u *identitydomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	copied := *u
	m.users = append(m.users, &copied)
	return nil
}

func (m *mockUserRepo) NextPublicUserID(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := identitydomain.FirstPublicUserID
	for _, u := range m.users {
		if u.UserID >= next {
			next = u.UserID + 1
		}
	}
	return next, nil
}

type mockMessageRepo struct {
	mu       sync.Mutex
	messages []*chatdomain.Message
	nextID   int
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *chatdomain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	stored := *msg
	m.messages = append(m.messages, &stored)
	return nil
}

func (m *mockMessageRepo) HistoryByRoom(ctx context.Context, roomID string) ([]*chatdomain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*chatdomain.Message
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type testEnv struct {
	srv        *httptest.Server
	users      *mockUserRepo
	registry   *presence.MemoryRegistry
	dispatcher *dispatch.Dispatcher
	hasher     *security.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		CORSOrigin: "http://localhost:5173",
		SessionTTL: "24h",
	}
	tokens := security.NewTokenProvider([]byte("test-secret-key-for-unit-tests!!"), 24*time.Hour)
	hasher := security.NewHasher(4)

	sessionRepo := newMockSessionRepo()
	store := session.NewStore(sessionRepo, tokens, 24*time.Hour)
	users := &mockUserRepo{}
	auth := service.NewAuthService(users, store, hasher, nil)

	registry := presence.NewMemoryRegistry()
	hub := realtime.NewHub(registry)
	chatSvc := chat.NewService(&mockMessageRepo{})
	WireChat(hub, chatSvc)

	authenticator := realtime.NewAuthenticator(tokens, store, nil)
	wsHandler := realtime.NewHandler(hub, authenticator, cfg.CORSOrigin)

	policy, err := engine.NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(registry, nil)
	router := NewRouter(Deps{
		Config:     cfg,
		Sessions:   store,
		Auth:       auth,
		Chat:       chatSvc,
		Policy:     policy,
		Realtime:   wsHandler,
		Dispatcher: dispatcher,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{
		srv:        srv,
		users:      users,
		registry:   registry,
		dispatcher: dispatcher,
		hasher:     hasher,
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, token string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var fields map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func (e *testEnv) getJSON(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *testEnv) register(t *testing.T, fullName, email, phone string) string {
	t.Helper()
	resp, fields := e.postJSON(t, "/api/auth/register", map[string]string{
		"fullName": fullName,
		"email":    email,
		"phone":    phone,
		"password": "password123",
	}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil {
		t.Fatalf("register token: %v", err)
	}
	return token
}

// registerAdmin seeds an admin directly and logs it in through the API.
func (e *testEnv) registerAdmin(t *testing.T, email string) string {
	t.Helper()
	hash, err := e.hasher.Hash("adminpass123")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.users.Create(context.Background(), &identitydomain.User{
		UserID:       1,
		FullName:     "Support Desk",
		Email:        email,
		Phone:        "admin-" + email,
		PasswordHash: hash,
		Role:         identitydomain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	resp, fields := e.postJSON(t, "/api/auth/login", map[string]string{
		"emailOrPhone": email,
		"password":     "adminpass123",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login status = %d", resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) dialWS(t *testing.T, token string) (*websocket.Conn, *http.Response) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil && resp == nil {
		t.Fatalf("dial: %v", err)
	}
	return conn, resp
}

func readEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) (realtime.Envelope, bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var env realtime.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return realtime.Envelope{}, false
	}
	return env, true
}

func TestRegisterConnectLogoutReconnect(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Asha Nair", "asha@example.com", "9000000001")

	conn, resp := env.dialWS(t, token)
	if conn == nil {
		t.Fatalf("dial failed with status %d", resp.StatusCode)
	}
	conn.Close()

	logoutResp, _ := env.postJSON(t, "/api/auth/logout", nil, token)
	if logoutResp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", logoutResp.StatusCode)
	}

	// The token still carries a valid signature, but the session row is gone.
	conn2, resp2 := env.dialWS(t, token)
	if conn2 != nil {
		conn2.Close()
		t.Fatal("handshake succeeded with a revoked token")
	}
	if resp2 == nil || resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 for revoked token, got %v", resp2)
	}
}

func TestHandshakeRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	conn, resp := env.dialWS(t, "not-a-jwt")
	if conn != nil {
		conn.Close()
		t.Fatal("handshake succeeded with a garbage token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %v", resp)
	}
}

func TestNewComplaintReachesOnlyAdmins(t *testing.T) {
	env := newTestEnv(t)

	adminToken1 := env.registerAdmin(t, "admin1@example.com")
	adminToken2 := env.registerAdmin(t, "admin2@example.com")
	userToken := env.register(t, "Asha Nair", "asha@example.com", "9000000001")

	admin1, _ := env.dialWS(t, adminToken1)
	admin2, _ := env.dialWS(t, adminToken2)
	citizen, _ := env.dialWS(t, userToken)
	if admin1 == nil || admin2 == nil || citizen == nil {
		t.Fatal("dials failed")
	}
	defer admin1.Close()
	defer admin2.Close()
	defer citizen.Close()

	waitForConnections(t, env.registry, "admin", 2)

	n := env.dispatcher.NotifyNewComplaint(context.Background(), dispatch.ComplaintNotice{
		ComplaintID: "CMP000001",
		UserName:    "Asha Nair",
		Title:       "Streetlight out",
		Category:    "infrastructure",
	})
	if n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}

	for i, conn := range []*websocket.Conn{admin1, admin2} {
		frame, ok := readEnvelope(t, conn, 2*time.Second)
		if !ok || frame.Event != realtime.EventNewComplaint {
			t.Fatalf("admin %d: event = %q, ok = %v", i+1, frame.Event, ok)
		}
		var notice dispatch.ComplaintNotice
		if err := json.Unmarshal(frame.Data, &notice); err != nil {
			t.Fatal(err)
		}
		if notice.ComplaintID != "CMP000001" {
			t.Fatalf("complaintId = %q", notice.ComplaintID)
		}
	}
	if frame, ok := readEnvelope(t, citizen, 300*time.Millisecond); ok {
		t.Fatalf("citizen received admin broadcast: %v", frame.Event)
	}
}

func TestStatusUpdateReachesOwnerOnly(t *testing.T) {
	env := newTestEnv(t)

	ownerToken := env.register(t, "Asha Nair", "asha@example.com", "9000000001")
	otherToken := env.register(t, "Ravi Iyer", "ravi@example.com", "9000000002")

	owner, _ := env.dialWS(t, ownerToken)
	other, _ := env.dialWS(t, otherToken)
	if owner == nil || other == nil {
		t.Fatal("dials failed")
	}
	defer owner.Close()
	defer other.Close()

	waitForConnections(t, env.registry, "user", 2)

	// Public ids start at 7000; the first registered user's internal id is 1.
	n := env.dispatcher.NotifyStatusUpdate(context.Background(), 1, dispatch.StatusNotice{
		ComplaintID: "CMP000001",
		Status:      "in-progress",
		Title:       "Streetlight out",
	})
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	frame, ok := readEnvelope(t, owner, 2*time.Second)
	if !ok || frame.Event != realtime.EventStatusUpdate {
		t.Fatalf("owner: event = %q, ok = %v", frame.Event, ok)
	}
	if frame, ok := readEnvelope(t, other, 300*time.Millisecond); ok {
		t.Fatalf("other user received targeted update: %v", frame.Event)
	}
}

func TestChatOverChannel(t *testing.T) {
	env := newTestEnv(t)

	tokenA := env.register(t, "Asha Nair", "asha@example.com", "9000000001")
	tokenB := env.register(t, "Ravi Iyer", "ravi@example.com", "9000000002")

	connA, _ := env.dialWS(t, tokenA)
	connB, _ := env.dialWS(t, tokenB)
	if connA == nil || connB == nil {
		t.Fatal("dials failed")
	}
	defer connA.Close()
	defer connB.Close()

	join := func(conn *websocket.Conn) {
		if err := conn.WriteJSON(map[string]any{"event": "joinRoom", "data": map[string]string{"recipientId": ""}}); err != nil {
			t.Fatal(err)
		}
		frame, ok := readEnvelope(t, conn, 2*time.Second)
		if !ok || frame.Event != realtime.EventMessageHistory {
			t.Fatalf("join reply = %q, ok = %v", frame.Event, ok)
		}
	}
	join(connA)
	join(connB)

	if err := connA.WriteJSON(map[string]any{
		"event": "sendMessage",
		"data":  map[string]string{"recipientId": "", "message": "my streetlight is still out"},
	}); err != nil {
		t.Fatal(err)
	}

	for name, conn := range map[string]*websocket.Conn{"sender": connA, "roommate": connB} {
		frame, ok := readEnvelope(t, conn, 2*time.Second)
		if !ok || frame.Event != realtime.EventNewMessage {
			t.Fatalf("%s: event = %q, ok = %v", name, frame.Event, ok)
		}
		var m chatdomain.Message
		if err := json.Unmarshal(frame.Data, &m); err != nil {
			t.Fatal(err)
		}
		if m.Body != "my streetlight is still out" || m.RoomID != chat.SharedRoom {
			t.Fatalf("%s: message = %+v", name, m)
		}
	}
}

func TestSessionListingRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	userToken := env.register(t, "Asha Nair", "asha@example.com", "9000000001")
	adminToken := env.registerAdmin(t, "admin@example.com")

	resp := env.getJSON(t, "/api/sessions", userToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user listing status = %d, want 403", resp.StatusCode)
	}

	resp = env.getJSON(t, "/api/sessions", adminToken)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin listing status = %d, want 200", resp.StatusCode)
	}
	var views []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("active sessions = %d, want 2", len(views))
	}
	for _, v := range views {
		if _, ok := v["token"]; ok {
			t.Fatal("session listing must not expose tokens")
		}
	}
}

func TestMeAndMessagesREST(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Asha Nair", "asha@example.com", "9000000001")

	resp := env.getJSON(t, "/api/auth/me", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}

	postResp, _ := env.postJSON(t, "/api/messages", map[string]string{
		"recipientId": "",
		"message":     "hello via rest",
	}, token)
	if postResp.StatusCode != http.StatusCreated {
		t.Fatalf("post message status = %d", postResp.StatusCode)
	}

	histResp := env.getJSON(t, "/api/messages/room/support", token)
	defer histResp.Body.Close()
	var msgs []chatdomain.Message
	if err := json.NewDecoder(histResp.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hello via rest" {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/auth/me", "/api/messages/room/support", "/api/sessions"} {
		resp := env.getJSON(t, path, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/auth/login", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.getJSON(t, "/health", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

// waitForConnections waits until the registry reports want live connections
// for role; the hub registers asynchronously relative to the dialer's return.
func waitForConnections(t *testing.T, registry *presence.MemoryRegistry, role string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(registry.LookupByRole(role)) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s connections, have %d", want, role, len(registry.LookupByRole(role)))
}

func TestEventIntakeDispatchesOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.registerAdmin(t, "admin@example.com")
	userToken := env.register(t, "Asha Nair", "asha@example.com", "9000000001")

	admin, _ := env.dialWS(t, adminToken)
	citizen, _ := env.dialWS(t, userToken)
	if admin == nil || citizen == nil {
		t.Fatal("dials failed")
	}
	defer admin.Close()
	defer citizen.Close()

	waitForConnections(t, env.registry, "admin", 1)
	waitForConnections(t, env.registry, "user", 1)

	complaint := map[string]any{
		"seq":      3,
		"userName": "Asha Nair",
		"title":    "Streetlight out",
		"category": "infrastructure",
	}

	// Citizens cannot publish dispatch events.
	resp, _ := env.postJSON(t, "/api/events/complaint", complaint, userToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("citizen publish status = %d, want 403", resp.StatusCode)
	}

	resp, fields := env.postJSON(t, "/api/events/complaint", complaint, adminToken)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("complaint intake status = %d, want 202", resp.StatusCode)
	}
	var delivered int
	if err := json.Unmarshal(fields["delivered"], &delivered); err != nil {
		t.Fatal(err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	frame, ok := readEnvelope(t, admin, 2*time.Second)
	if !ok || frame.Event != realtime.EventNewComplaint {
		t.Fatalf("admin frame = %q, ok = %v", frame.Event, ok)
	}
	var notice dispatch.ComplaintNotice
	if err := json.Unmarshal(frame.Data, &notice); err != nil {
		t.Fatal(err)
	}
	if notice.ComplaintID != "CMP000003" {
		t.Fatalf("complaintId = %q, want seq rendered as CMP000003", notice.ComplaintID)
	}

	// The admin was seeded first, so the citizen's internal id is 2.
	resp, fields = env.postJSON(t, "/api/events/status", map[string]any{
		"ownerId":     2,
		"complaintId": "CMP000003",
		"status":      "resolved",
		"title":       "Streetlight out",
	}, adminToken)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status intake status = %d, want 202", resp.StatusCode)
	}
	if err := json.Unmarshal(fields["delivered"], &delivered); err != nil {
		t.Fatal(err)
	}
	if delivered != 1 {
		t.Fatalf("status delivered = %d, want 1", delivered)
	}
	frame, ok = readEnvelope(t, citizen, 2*time.Second)
	if !ok || frame.Event != realtime.EventStatusUpdate {
		t.Fatalf("citizen frame = %q, ok = %v", frame.Event, ok)
	}
}
