package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/usecase"
)

type fakeSessions struct {
	userID       string
	category     entity.Category
	answers      entity.PreferenceAnswers
	message      string
	recommendErr error
	chatErr      error
	chatResult   *usecase.ChatResult
}

func (f *fakeSessions) StartSession(ctx context.Context, userID string, category entity.Category) (*entity.Session, error) {
	f.userID, f.category = userID, category
	return &entity.Session{ID: "s1", UserID: userID, Category: category}, nil
}

func (f *fakeSessions) Recommend(ctx context.Context, userID, sessionID string, answers entity.PreferenceAnswers) ([]entity.Recommendation, error) {
	f.userID, f.answers = userID, answers
	if f.recommendErr != nil {
		return nil, f.recommendErr
	}
	return []entity.Recommendation{{Title: "Frieren"}, {Title: "Mushishi"}, {Title: "Monster"}}, nil
}

func (f *fakeSessions) Chat(ctx context.Context, userID, sessionID, message string) (*usecase.ChatResult, error) {
	f.userID, f.message = userID, message
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chatResult, nil
}

func (f *fakeSessions) StartOver(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	return &entity.Session{ID: sessionID, UserID: userID, Generation: 1}, nil
}

func (f *fakeSessions) Session(ctx context.Context, userID, sessionID string) (*usecase.SessionView, error) {
	if sessionID != "s1" {
		return nil, entity.ErrResourceNotFound
	}
	return &usecase.SessionView{Session: &entity.Session{ID: sessionID, UserID: userID}}, nil
}

func (f *fakeSessions) ListSessions(ctx context.Context, userID string) ([]*entity.Session, error) {
	return nil, nil
}

func (f *fakeSessions) Messages(ctx context.Context, userID, sessionID string) ([]entity.StoredMessage, error) {
	return []entity.StoredMessage{
		{ID: 1, SessionID: sessionID, Role: entity.RoleUser, Content: "anything darker?"},
		{ID: 2, SessionID: sessionID, Role: entity.RoleAssistant, Content: "Try Monster."},
	}, nil
}

func (f *fakeSessions) QueryLimitReached(ctx context.Context, userID, sessionID string) (bool, error) {
	return true, nil
}

type fakeContexts struct{ asked entity.Category }

func (f *fakeContexts) CategoryContext(ctx context.Context, category entity.Category) string {
	f.asked = category
	return "- \"Frieren\" (2023): An elf mage travels on."
}

func (f *fakeContexts) MessageContext(ctx context.Context, query string) string { return "" }

func newTestApp(sessions *fakeSessions, contexts *fakeContexts, secret string) *fiber.App {
	app := NewApp("zappy-test")
	SetupRouter(app, NewHandler(sessions, contexts, "1.2.3", "test"), NewAuthenticator(secret))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestHealth(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodGet, "/health", "")
	if status != http.StatusOK || body["version"] != "1.2.3" || body["env"] != "test" {
		t.Fatalf("got %d %v", status, body)
	}
}

func TestCreateSessionAnonymous(t *testing.T) {
	sessions := &fakeSessions{}
	app := newTestApp(sessions, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodPost, "/v1/sessions", `{"category":"Anime"}`)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if sessions.userID != AnonymousUser || sessions.category != entity.CategoryAnime {
		t.Fatalf("started %q for %q", sessions.category, sessions.userID)
	}
}

func TestCreateSessionRejectsUnknownCategory(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, _ := do(t, app, http.MethodPost, "/v1/sessions", `{"category":"Podcast"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	sessions := &fakeSessions{}
	app := newTestApp(sessions, &fakeContexts{}, secret)

	status, _ := do(t, app, http.MethodPost, "/v1/sessions", `{"category":"Movie"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", status)
	}

	bad := signToken(t, "other-secret", "user-1")
	status, _ = do(t, app, http.MethodPost, "/v1/sessions", `{"category":"Movie"}`, "Authorization", "Bearer "+bad)
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d, want 401", status)
	}

	good := signToken(t, secret, "user-1")
	status, _ = do(t, app, http.MethodPost, "/v1/sessions", `{"category":"Movie"}`, "Authorization", "Bearer "+good)
	if status != http.StatusCreated {
		t.Fatalf("valid token: status = %d, want 201", status)
	}
	if sessions.userID != "user-1" {
		t.Fatalf("user = %q, want user-1", sessions.userID)
	}
}

func TestRecommend(t *testing.T) {
	sessions := &fakeSessions{}
	app := newTestApp(sessions, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodPost, "/v1/sessions/s1/recommendations", `{"answers":["Anime","Fantasy","Calm"]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	recs, _ := body["recommendations"].([]any)
	if len(recs) != 3 {
		t.Fatalf("recommendations = %v", body["recommendations"])
	}
	if len(sessions.answers) != 3 || sessions.answers[1] != "Fantasy" {
		t.Fatalf("answers = %v", sessions.answers)
	}
}

func TestRecommendNeedsPreferences(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, _ := do(t, app, http.MethodPost, "/v1/sessions/s1/recommendations", `{"answers":["Anime"]}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestRecommendFailureAsksForReset(t *testing.T) {
	sessions := &fakeSessions{recommendErr: fmt.Errorf("%w: %w", entity.ErrRecommendationGenerationFailed, entity.ErrMalformedModelOutput)}
	app := newTestApp(sessions, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodPost, "/v1/sessions/s1/recommendations", `{"answers":["Game","RPG"]}`)
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", status)
	}
	if body["error"] != RecommendationFailedMessage || body["reset"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"query limit", entity.ErrQueryLimitReached, http.StatusForbidden},
		{"token budget", entity.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"started over", entity.ErrStaleResult, http.StatusConflict},
		{"missing session", entity.ErrResourceNotFound, http.StatusNotFound},
		{"store failure", fmt.Errorf("counting messages: disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeSessions{chatErr: tt.err}, &fakeContexts{}, "")

			status, body := do(t, app, http.MethodPost, "/v1/sessions/s1/messages", `{"message":"more like the first one"}`)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.status, body)
			}
			if tt.status == http.StatusForbidden && body["queryLimitReached"] != true {
				t.Fatalf("body = %v, want queryLimitReached", body)
			}
		})
	}
}

func TestChat(t *testing.T) {
	sessions := &fakeSessions{chatResult: &usecase.ChatResult{
		Message: entity.ChatMessage{Role: entity.RoleAssistant, Content: "Try Mushishi."},
	}}
	app := newTestApp(sessions, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodPost, "/v1/sessions/s1/messages", `{"message":"something calmer?"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if sessions.message != "something calmer?" {
		t.Fatalf("message = %q", sessions.message)
	}
	if body["fallback"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, _ := do(t, app, http.MethodPost, "/v1/sessions/s1/messages", `{"message":""}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestGetSession(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodGet, "/v1/sessions/s1", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if msgs, ok := body["messages"].([]any); !ok || len(msgs) != 0 {
		t.Fatalf("messages = %v, want empty list", body["messages"])
	}

	status, _ = do(t, app, http.MethodGet, "/v1/sessions/nope", "")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestCategoryContextUnescapesName(t *testing.T) {
	contexts := &fakeContexts{}
	app := newTestApp(&fakeSessions{}, contexts, "")

	status, body := do(t, app, http.MethodGet, "/v1/context/TV%20Series", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if contexts.asked != entity.CategoryTVSeries {
		t.Fatalf("asked for %q", contexts.asked)
	}
	if !strings.Contains(body["context"].(string), "Frieren") {
		t.Fatalf("context = %v", body["context"])
	}
}

func TestMessages(t *testing.T) {
	app := newTestApp(&fakeSessions{}, &fakeContexts{}, "")

	status, body := do(t, app, http.MethodGet, "/v1/sessions/s1/messages", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 || body["queryLimitReached"] != true {
		t.Fatalf("body = %v", body)
	}
}
