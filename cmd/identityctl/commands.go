package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"academia-identity/backend/internal/app"
	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error)
}

var commands = []command{
	{"signup", "create a password account", signUp},
	{"signin", "sign in with email and password", signIn},
	{"signin-oidc", "sign in with a federated ID token or auth code", signInOIDC},
	{"reset-password", "issue a password reset token", resetPassword},
	{"confirm-reset", "set a new password with a reset token", confirmReset},
	{"profile", "show a profile", getProfile},
	{"create-profile", "create the profile of a user", createProfile},
	{"update-profile", "change fields of a profile", updateProfile},
	{"deactivate", "deactivate a profile", deactivate},
	{"claims", "show the claims of a user", getClaims},
	{"set-claims", "set the role and academia of a user", setClaims},
	{"token", "issue a fresh ID token", refreshToken},
	{"academia", "show an academia", getAcademia},
	{"health", "check database and policy engine", checkHealth},
}

var errUsage = errors.New("usage")

// run executes the command named by args[0] and writes its result to out as JSON.
func run(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		result, err := c.run(ctx, a, fs, args[1:])
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	return nil
}

func signUp(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.SignUp(ctx, *email, *password)
}

func signIn(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.SignIn(ctx, *email, *password)
}

func signInOIDC(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	p := fs.String("provider", "", "google, apple, facebook or microsoft")
	var cred provider.Credential
	fs.StringVar(&cred.IDToken, "id-token", "", "ID token from the provider")
	fs.StringVar(&cred.AuthCode, "code", "", "authorization code to exchange")
	fs.StringVar(&cred.CodeVerifier, "code-verifier", "", "PKCE verifier of the authorization request")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fp := domain.FederatedProvider(*p)
	if !fp.Valid() {
		return nil, fmt.Errorf("%w: unknown provider %q", errUsage, *p)
	}
	return a.Repository.SignInWithProvider(ctx, fp, cred)
}

func resetPassword(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := a.Repository.SendPasswordResetEmail(ctx, *email); err != nil {
		return nil, err
	}
	return map[string]string{"status": "sent"}, nil
}

func confirmReset(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	token := fs.String("token", "", "reset token")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("token", *token); err != nil {
		return nil, err
	}
	if err := a.Auth.ConfirmPasswordReset(ctx, *token, *password); err != nil {
		return nil, err
	}
	return map[string]string{"status": "password changed"}, nil
}

func getProfile(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.GetProfile(ctx, *id)
}

func createProfile(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "user id")
	u := profileFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.CreateProfile(ctx, *id, u.update(fs))
}

func updateProfile(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "user id")
	u := profileFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	update := u.update(fs)
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: no field to update", errUsage)
	}
	return a.Repository.UpdateProfile(ctx, *id, update)
}

func deactivate(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.DeactivateProfile(ctx, *id)
}

func getClaims(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	uid := fs.String("uid", "", "user id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.GetClaims(ctx, *uid)
}

func setClaims(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	uid := fs.String("uid", "", "user id")
	role := fs.String("role", "", "student, instructor or admin")
	academia := fs.String("academia", "", "academia id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("uid", *uid); err != nil {
		return nil, err
	}
	var academiaID *string
	if *academia != "" {
		academiaID = academia
	}
	if err := a.Auth.SetClaims(ctx, *uid, *role, academiaID); err != nil {
		return nil, err
	}
	return a.Repository.GetClaims(ctx, *uid)
}

func refreshToken(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	uid := fs.String("uid", "", "user id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	token, err := a.Repository.RefreshToken(ctx, *uid)
	if err != nil {
		return nil, err
	}
	return map[string]string{"idToken": token}, nil
}

func getAcademia(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.String("id", "", "academia id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.Repository.GetAcademia(ctx, *id)
}

func checkHealth(ctx context.Context, a *app.App, fs *flag.FlagSet, args []string) (any, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	statuses, err := a.Health.Check(ctx)
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// profileValues holds the profile flags; only flags given on the command line become fields.
type profileValues struct {
	name, email, phone, userType, academia, graduation string
	active, completed                                  bool
}

func profileFlags(fs *flag.FlagSet) *profileValues {
	v := &profileValues{}
	fs.StringVar(&v.name, "name", "", "full name")
	fs.StringVar(&v.email, "email", "", "contact email")
	fs.StringVar(&v.phone, "phone", "", "phone number")
	fs.StringVar(&v.userType, "type", "", "student, instructor or admin")
	fs.StringVar(&v.academia, "academia", "", "academia id")
	fs.StringVar(&v.graduation, "graduation", "", "current graduation")
	fs.BoolVar(&v.active, "active", true, "profile is active")
	fs.BoolVar(&v.completed, "completed", false, "profile is completed")
	return v
}

func (v *profileValues) update(fs *flag.FlagSet) domain.ProfileUpdate {
	var u domain.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			u.Name = &v.name
		case "email":
			u.Email = &v.email
		case "phone":
			u.Phone = &v.phone
		case "type":
			t := domain.UserType(v.userType)
			u.UserType = &t
		case "academia":
			u.AcademiaID = &v.academia
		case "graduation":
			u.CurrentGraduation = &v.graduation
		case "active":
			u.IsActive = &v.active
		case "completed":
			u.ProfileCompleted = &v.completed
		}
	})
	return u
}
