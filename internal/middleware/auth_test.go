package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-jwt-secret-that-is-32-chars!!"

// signToken builds an HS256 token with the given claims mutations.
func signToken(t *testing.T, secret string, mutate func(*ActorClaims)) string {
	t.Helper()
	claims := &ActorClaims{
		Name:  "Jordan Analyst",
		Email: "jordan@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// identityRouter wires ActorIdentity in front of a handler that echoes the
// resolved user name.
func identityRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, UserName(c))
	})
	return r
}

func TestActorIdentity_ValidToken(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "Jordan Analyst" {
		t.Errorf("user name = %q, want Jordan Analyst", got)
	}
}

func TestActorIdentity_NameFallsBackToEmail(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	token := signToken(t, testSecret, func(c *ActorClaims) { c.Name = "" })
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != "jordan@example.com" {
		t.Errorf("user name = %q, want email fallback", got)
	}
}

func TestActorIdentity_NoHeaderIsAnonymous(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (identity is optional)", w.Code)
	}
	if got := w.Body.String(); got != AnonymousUser {
		t.Errorf("user name = %q, want %q", got, AnonymousUser)
	}
}

func TestActorIdentity_BadSignatureIsAnonymous(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	token := signToken(t, "some-entirely-different-secret!!!", nil)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != AnonymousUser {
		t.Errorf("user name = %q, want %q for a forged token", got, AnonymousUser)
	}
}

func TestActorIdentity_ExpiredTokenIsAnonymous(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	token := signToken(t, testSecret, func(c *ActorClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != AnonymousUser {
		t.Errorf("user name = %q, want %q for an expired token", got, AnonymousUser)
	}
}

func TestActorIdentity_NonBearerSchemeIgnored(t *testing.T) {
	r := identityRouter(ActorIdentity(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != AnonymousUser {
		t.Errorf("user name = %q, want %q", got, AnonymousUser)
	}
}

func TestRequireActor_MissingHeaderRejected(t *testing.T) {
	r := identityRouter(RequireActor(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireActor_InvalidTokenRejected(t *testing.T) {
	r := identityRouter(RequireActor(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireActor_ValidTokenPasses(t *testing.T) {
	r := identityRouter(RequireActor(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "Jordan Analyst" {
		t.Errorf("user name = %q, want Jordan Analyst", got)
	}
}

func TestUserName_DefaultsOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := UserName(c); got != AnonymousUser {
		t.Errorf("UserName on bare context = %q, want %q", got, AnonymousUser)
	}
}
