package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func testSessions() *Sessions {
	return NewSessions([]byte("0123456789abcdef0123456789abcdef"), false)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("espresso42")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if hash == "espresso42" {
		t.Fatal("hash must not equal the plaintext password")
	}
	if !CheckPassword(hash, "espresso42") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "espresso43") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	sessions := testSessions()

	signIn := httptest.NewRecorder()
	if err := sessions.SignIn(signIn, httptest.NewRequest(http.MethodPost, "/users/login", nil), 42); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	cookies := signIn.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	userID, ok := sessions.UserID(req)
	if !ok || userID != 42 {
		t.Fatalf("expected user 42 from session, got %d (%v)", userID, ok)
	}
}

func TestSignOutClearsSession(t *testing.T) {
	sessions := testSessions()

	signIn := httptest.NewRecorder()
	if err := sessions.SignIn(signIn, httptest.NewRequest(http.MethodPost, "/users/login", nil), 7); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	signOutReq := httptest.NewRequest(http.MethodGet, "/users/logout", nil)
	for _, cookie := range signIn.Result().Cookies() {
		signOutReq.AddCookie(cookie)
	}
	signOut := httptest.NewRecorder()
	if err := sessions.SignOut(signOut, signOutReq); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	for _, cookie := range signOut.Result().Cookies() {
		req.AddCookie(cookie)
	}
	if _, ok := sessions.UserID(req); ok {
		t.Fatal("expected no user after sign out")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")

	signed, err := tokens.Issue(13)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	userID, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if userID != 13 {
		t.Fatalf("expected user 13, got %d", userID)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a").Issue(13)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := NewTokens("secret-b").Verify(signed); err == nil {
		t.Fatal("expected verification to fail with the wrong secret")
	}
}

func TestRequireAuthRejectsAnonymousRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/api/user", RequireAuth(testSessions(), NewTokens("test-secret")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tokens := NewTokens("test-secret")
	router := gin.New()
	router.GET("/api/user", RequireAuth(testSessions(), tokens), func(c *gin.Context) {
		userID, ok := GetUserID(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	signed, err := tokens.Issue(9)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}
}

func TestRequirePageRedirectsToLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/users/dashboard", RequirePage(testSessions(), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/users/dashboard", nil))

	if resp.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.Code)
	}
	if location := resp.Header().Get("Location"); location != "/users/login" {
		t.Fatalf("expected redirect to /users/login, got %s", location)
	}
}

func TestPasswordValidatorRule(t *testing.T) {
	if err := RegisterValidators(); err != nil {
		t.Fatalf("failed to register validators: %v", err)
	}

	type form struct {
		Password string `binding:"required,password"`
	}

	cases := []struct {
		password string
		valid    bool
	}{
		{"espresso42", true},
		{"short1", false},
		{"allletters", false},
		{"1234567890", false},
	}

	for _, tc := range cases {
		err := binding.Validator.ValidateStruct(form{Password: tc.password})
		if tc.valid && err != nil {
			t.Fatalf("expected %q to validate, got %v", tc.password, err)
		}
		if !tc.valid && err == nil {
			t.Fatalf("expected %q to be rejected", tc.password)
		}
	}
}
