package localauth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
	"academia-identity/backend/internal/docstore"
	"academia-identity/backend/internal/federated"
	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/identity/schema"
	"academia-identity/backend/internal/security"
)

func openStore(t *testing.T) *docstore.SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.db")
	url, err := db.MigrateURL(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("MigrateURL: %v", err)
	}
	if err := migrate.Run(url, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return docstore.New(conn, docstore.SQLite)
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = map[string]string{}
	}
	n.tokens[email] = token
	return nil
}

func (n *recordingNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type stubVerifier struct {
	p   domain.FederatedProvider
	id  *federated.Identity
	err error
}

func (s *stubVerifier) Provider() domain.FederatedProvider { return s.p }

func (s *stubVerifier) Verify(context.Context, provider.Credential) (*federated.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	id := *s.id
	id.Provider = s.p
	return &id, nil
}

type stubEvaluator struct{ perms []string }

func (s stubEvaluator) Permissions(context.Context, string, *string) ([]string, error) {
	return s.perms, nil
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	opts = append([]Option{WithHasher(security.NewHasher(4))}, opts...)
	return New(openStore(t), tokens, opts...)
}

func codeOf(err error) string {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func TestClient_SignUpAndSignIn(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec, err := c.SignUp(ctx, "  Ana@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if rec["email"] != "ana@example.com" || rec["uid"] == "" || rec["emailVerified"] != false {
		t.Errorf("SignUp record = %v", rec)
	}
	if _, ok := rec["passwordHash"]; ok {
		t.Error("record must not expose the password hash")
	}
	if _, err := schema.ValidateUser(rec); err != nil {
		t.Errorf("SignUp record is not a valid user record: %v", err)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if cur, _ := c.CurrentUser(ctx); cur != nil {
		t.Fatalf("CurrentUser after SignOut = %v", cur)
	}

	again, err := c.SignIn(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if again["uid"] != rec["uid"] {
		t.Errorf("SignIn uid = %v, want %v", again["uid"], rec["uid"])
	}
	cur, err := c.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if cur["uid"] != rec["uid"] {
		t.Errorf("CurrentUser = %v", cur)
	}
}

func TestClient_SignUpRejects(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "bia@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	tests := []struct {
		name, email, password, want string
	}{
		{"duplicate", "BIA@example.com", "another1", provider.CodeEmailAlreadyInUse},
		{"bad email", "not-an-email", "secret1", provider.CodeInvalidEmail},
		{"empty email", "", "secret1", provider.CodeInvalidEmail},
		{"weak password", "caio@example.com", "12345", provider.CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SignUp(ctx, tt.email, tt.password)
			if got := codeOf(err); got != tt.want {
				t.Fatalf("SignUp error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestClient_SignInFailures(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	_ = c.SignOut(ctx)

	if _, err := c.SignIn(ctx, "ana@example.com", "wrong-pass"); codeOf(err) != provider.CodeWrongPassword {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := c.SignIn(ctx, "nobody@example.com", "secret1"); codeOf(err) != provider.CodeUserNotFound {
		t.Errorf("unknown user error = %v", err)
	}
	if cur, _ := c.CurrentUser(ctx); cur != nil {
		t.Errorf("failed sign-in must not start a session, got %v", cur)
	}
}

func TestClient_SignInThrottled(t *testing.T) {
	c := newTestClient(t, WithSignInLimit(time.Hour, 2))
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.SignIn(ctx, "ana@example.com", "bad-guess"); codeOf(err) != provider.CodeWrongPassword {
			t.Fatalf("attempt %d error = %v", i, err)
		}
	}
	if _, err := c.SignIn(ctx, "ana@example.com", "secret1"); codeOf(err) != provider.CodeTooManyRequests {
		t.Fatalf("third attempt error = %v, want %s", err, provider.CodeTooManyRequests)
	}
	if _, err := c.SignIn(ctx, "other@example.com", "secret1"); codeOf(err) != provider.CodeUserNotFound {
		t.Errorf("limit should be per email, got %v", err)
	}
}

func TestClient_SweepsIdleLimiters(t *testing.T) {
	c := newTestClient(t, WithSignInLimit(time.Hour, 2))
	for i := 0; i < limiterSweepAt-1; i++ {
		c.limiters[fmt.Sprintf("idle%d@example.com", i)] = rate.NewLimiter(c.limit, c.burst)
	}
	if !c.allow("busy@example.com") {
		t.Fatal("first attempt should be allowed")
	}
	if len(c.limiters) != limiterSweepAt {
		t.Fatalf("limiters = %d, want %d before the sweep", len(c.limiters), limiterSweepAt)
	}

	c.allow("new@example.com")
	if _, ok := c.limiters["busy@example.com"]; !ok {
		t.Error("a limiter with spent tokens must survive the sweep")
	}
	if len(c.limiters) != 2 {
		t.Errorf("limiters = %d, want 2 after the sweep", len(c.limiters))
	}
	if !c.allow("busy@example.com") || c.allow("busy@example.com") {
		t.Error("busy limiter lost its state")
	}
}

func TestClient_OnAuthStateChanged(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []provider.Record
	unsubscribe := c.OnAuthStateChanged(func(rec provider.Record) {
		mu.Lock()
		seen = append(seen, rec)
		mu.Unlock()
	})
	rec, err := c.SignUp(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	_ = c.SignOut(ctx)
	unsubscribe()
	unsubscribe()
	if _, err := c.SignIn(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("observer calls = %d, want 3 (initial, sign-up, sign-out)", len(seen))
	}
	if seen[0] != nil || seen[1]["uid"] != rec["uid"] || seen[2] != nil {
		t.Errorf("observed states = %v", seen)
	}

	var initial provider.Record
	c.OnAuthStateChanged(func(r provider.Record) { initial = r })
	if initial["uid"] != rec["uid"] {
		t.Errorf("a new observer should receive the current session, got %v", initial)
	}
}

func TestClient_PasswordReset(t *testing.T) {
	n := &recordingNotifier{}
	c := newTestClient(t, WithNotifier(n))
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if err := c.SendPasswordResetEmail(ctx, "nobody@example.com"); codeOf(err) != provider.CodeUserNotFound {
		t.Errorf("unknown email error = %v", err)
	}
	if err := c.SendPasswordResetEmail(ctx, "Ana@example.com"); err != nil {
		t.Fatalf("SendPasswordResetEmail: %v", err)
	}
	token := n.token("ana@example.com")
	if token == "" {
		t.Fatal("notifier did not receive a token")
	}

	if err := c.ConfirmPasswordReset(ctx, token, "123"); codeOf(err) != provider.CodeWeakPassword {
		t.Errorf("weak password error = %v", err)
	}
	if err := c.ConfirmPasswordReset(ctx, token, "brand-new"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if err := c.ConfirmPasswordReset(ctx, token, "second-try"); codeOf(err) != provider.CodeInvalidActionCode {
		t.Errorf("reused token error = %v, want %s", err, provider.CodeInvalidActionCode)
	}
	if err := c.ConfirmPasswordReset(ctx, "garbage", "second-try"); codeOf(err) != provider.CodeInvalidActionCode {
		t.Errorf("garbage token error = %v", err)
	}

	if _, err := c.SignIn(ctx, "ana@example.com", "secret1"); codeOf(err) != provider.CodeWrongPassword {
		t.Errorf("old password error = %v", err)
	}
	if _, err := c.SignIn(ctx, "ana@example.com", "brand-new"); err != nil {
		t.Errorf("SignIn with new password: %v", err)
	}
}

func TestClient_ClaimsAndRefreshToken(t *testing.T) {
	c := newTestClient(t, WithEvaluator(stubEvaluator{perms: []string{"classes:read", "classes:write"}}))
	ctx := context.Background()
	rec, err := c.SignUp(ctx, "prof@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	uid := rec["uid"].(string)

	claims, err := c.Claims(ctx, uid)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims != nil {
		t.Fatalf("Claims before SetClaims = %v, want nil", claims)
	}

	academia := "acad-1"
	if err := c.SetClaims(ctx, uid, "instructor", &academia); err != nil {
		t.Fatalf("SetClaims: %v", err)
	}
	if err := c.SetClaims(ctx, "ghost", "admin", nil); codeOf(err) != provider.CodeUserNotFound {
		t.Errorf("SetClaims unknown user error = %v", err)
	}
	if err := c.SetClaims(ctx, uid, "", nil); err == nil {
		t.Error("SetClaims without role should fail")
	}

	claims, err = c.Claims(ctx, uid)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	parsed, err := schema.ValidateClaims(claims)
	if err != nil {
		t.Fatalf("claims record invalid: %v", err)
	}
	if parsed.Role != "instructor" || parsed.AcademiaID == nil || *parsed.AcademiaID != "acad-1" {
		t.Errorf("claims = %+v", parsed)
	}
	if !slices.Equal(parsed.Permissions, []string{"classes:read", "classes:write"}) {
		t.Errorf("permissions = %v", parsed.Permissions)
	}

	token, err := c.RefreshToken(ctx, uid)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	tokens, _ := security.NewTestTokenProvider()
	idc, err := tokens.ValidateIDToken(token)
	if err != nil {
		t.Fatalf("ValidateIDToken: %v", err)
	}
	if idc.Subject != uid || idc.Email != "prof@example.com" || idc.Role != "instructor" || len(idc.Permissions) != 2 {
		t.Errorf("token claims = %+v", idc)
	}
	if _, err := c.RefreshToken(ctx, "ghost"); codeOf(err) != provider.CodeUserNotFound {
		t.Errorf("RefreshToken unknown user error = %v", err)
	}
}

func TestClient_ClaimsWithoutAcademia(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	rec, err := c.SignUp(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := c.SetClaims(ctx, rec["uid"].(string), "student", nil); err != nil {
		t.Fatalf("SetClaims: %v", err)
	}
	claims, err := c.Claims(ctx, rec["uid"].(string))
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims["academiaId"] != nil {
		t.Errorf("academiaId = %v, want nil", claims["academiaId"])
	}
	if perms, ok := claims["permissions"].([]string); !ok || len(perms) != 0 {
		t.Errorf("permissions = %#v, want empty list", claims["permissions"])
	}
}

func TestClient_SignInWithCredential(t *testing.T) {
	google := &stubVerifier{p: domain.FederatedGoogle, id: &federated.Identity{Subject: "g-1", Email: "Ana@Example.com", EmailVerified: true, Name: "Ana"}}
	apple := &stubVerifier{p: domain.FederatedApple, id: &federated.Identity{Subject: "a-1", Email: "ana@example.com", EmailVerified: false}}
	c := newTestClient(t, WithRegistry(federated.NewRegistry(google, apple)))
	ctx := context.Background()

	first, err := c.SignInWithCredential(ctx, domain.FederatedGoogle, provider.Credential{IDToken: "tok"})
	if err != nil {
		t.Fatalf("SignInWithCredential: %v", err)
	}
	if first["email"] != "ana@example.com" || first["emailVerified"] != true || first["displayName"] != "Ana" {
		t.Errorf("record = %v", first)
	}
	second, err := c.SignInWithCredential(ctx, domain.FederatedGoogle, provider.Credential{IDToken: "tok"})
	if err != nil {
		t.Fatalf("SignInWithCredential again: %v", err)
	}
	if second["uid"] != first["uid"] {
		t.Errorf("second sign-in uid = %v, want %v", second["uid"], first["uid"])
	}

	if _, err := c.SignInWithCredential(ctx, domain.FederatedApple, provider.Credential{IDToken: "tok"}); codeOf(err) != provider.CodeCredentialAlreadyInUse {
		t.Errorf("unverified email collision error = %v", err)
	}
	if _, err := c.SignInWithCredential(ctx, domain.FederatedMicrosoft, provider.Credential{IDToken: "tok"}); codeOf(err) != provider.CodeOperationNotAllowed {
		t.Errorf("unconfigured provider error = %v", err)
	}
	if _, err := c.SignIn(ctx, "ana@example.com", "whatever"); codeOf(err) != provider.CodeInvalidCredential {
		t.Errorf("password sign-in on a federated account error = %v", err)
	}
}

func TestClient_SignInWithCredentialLinksVerifiedEmail(t *testing.T) {
	ms := &stubVerifier{p: domain.FederatedMicrosoft, id: &federated.Identity{Subject: "m-1", Email: "ana@example.com", EmailVerified: true}}
	c := newTestClient(t, WithRegistry(federated.NewRegistry(ms)))
	ctx := context.Background()
	created, err := c.SignUp(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	linked, err := c.SignInWithCredential(ctx, domain.FederatedMicrosoft, provider.Credential{AuthCode: "c"})
	if err != nil {
		t.Fatalf("SignInWithCredential: %v", err)
	}
	if linked["uid"] != created["uid"] || linked["emailVerified"] != true {
		t.Errorf("linked record = %v, want uid %v", linked, created["uid"])
	}
	if _, err := c.SignIn(ctx, "ana@example.com", "secret1"); err != nil {
		t.Errorf("password sign-in after linking: %v", err)
	}
}

func TestClient_SignInWithCredentialVerifierError(t *testing.T) {
	bad := &stubVerifier{p: domain.FederatedFacebook, err: provider.NewError(provider.CodeInvalidCredential, "expired")}
	c := newTestClient(t, WithRegistry(federated.NewRegistry(bad)))
	_, err := c.SignInWithCredential(context.Background(), domain.FederatedFacebook, provider.Credential{IDToken: "x"})
	if codeOf(err) != provider.CodeInvalidCredential {
		t.Fatalf("error = %v", err)
	}
}
