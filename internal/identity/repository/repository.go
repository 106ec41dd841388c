// Package repository is the only part of the identity layer that talks to the provider.
// Every inbound payload goes through the schema validators and the mappers before it reaches a caller;
// every provider failure goes through the error classifier.
package repository

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "academia-identity/backend/internal/errors"
	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/mapper"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/identity/schema"
)

const instrumentationName = "academia-identity/backend/internal/identity/repository"

// ErrMissingID is returned when an operation is called without the document id it addresses.
// It is an input failure reported the same way as a payload that fails its schema.
var ErrMissingID = &schema.ValidationError{Schema: "Identity", Issues: []string{"Identity id: Required"}}

// Collections names the document collections the repository reads and writes.
type Collections struct {
	Profiles string
	// Academias is checked first; AcademiasLegacy is the fallback for tenants created by older versions.
	Academias       string
	AcademiasLegacy string
}

// DefaultCollections returns the collection names used when none are configured.
func DefaultCollections() Collections {
	return Collections{
		Profiles:        "users",
		Academias:       "academias",
		AcademiasLegacy: "academies",
	}
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCollections overrides the collection names. Empty names keep their defaults.
func WithCollections(c Collections) Option {
	return func(r *Repository) {
		if c.Profiles != "" {
			r.collections.Profiles = c.Profiles
		}
		if c.Academias != "" {
			r.collections.Academias = c.Academias
		}
		if c.AcademiasLegacy != "" {
			r.collections.AcademiasLegacy = c.AcademiasLegacy
		}
	}
}

// WithTracerProvider sets the tracer provider; the default is the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) {
		if tp != nil {
			r.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider sets the meter provider; the default is the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Repository) {
		if mp != nil {
			r.meter = mp.Meter(instrumentationName)
		}
	}
}

// Repository turns provider payloads into validated domain entities. It holds no mutable state and
// is safe for concurrent use; several instances may share or use different providers.
type Repository struct {
	auth        provider.AuthClient
	docs        provider.DocumentStore
	claims      provider.ClaimsSource
	collections Collections
	logger      *zap.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	failures    metric.Int64Counter
}

// New returns a Repository over the given provider clients.
func New(auth provider.AuthClient, docs provider.DocumentStore, claims provider.ClaimsSource, opts ...Option) *Repository {
	r := &Repository{
		auth:        auth,
		docs:        docs,
		claims:      claims,
		collections: DefaultCollections(),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	counter, err := r.meter.Int64Counter(
		"identity.failures",
		metric.WithDescription("Identity operations that failed, by operation and error code."),
	)
	if err != nil {
		r.logger.Warn("identity failure counter unavailable", zap.Error(err))
		counter = noop.Int64Counter{}
	}
	r.failures = counter
	return r
}

// Collections returns the collection names in use.
func (r *Repository) Collections() Collections {
	return r.collections
}

// SignIn authenticates with email and password.
func (r *Repository) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := r.start(ctx, "SignIn")
	defer span.End()
	rec, err := r.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, r.fail(ctx, span, "SignIn", err)
	}
	return r.user(ctx, span, "SignIn", rec)
}

// SignUp creates an account with email and password and signs it in.
func (r *Repository) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := r.start(ctx, "SignUp")
	defer span.End()
	rec, err := r.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, r.fail(ctx, span, "SignUp", err)
	}
	return r.user(ctx, span, "SignUp", rec)
}

// SignOut ends the current session.
func (r *Repository) SignOut(ctx context.Context) error {
	ctx, span := r.start(ctx, "SignOut")
	defer span.End()
	if err := r.auth.SignOut(ctx); err != nil {
		return r.fail(ctx, span, "SignOut", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil when nobody is signed in.
func (r *Repository) CurrentUser(ctx context.Context) (*domain.User, error) {
	ctx, span := r.start(ctx, "CurrentUser")
	defer span.End()
	rec, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return nil, r.fail(ctx, span, "CurrentUser", err)
	}
	if rec == nil {
		return nil, nil
	}
	return r.user(ctx, span, "CurrentUser", rec)
}

// OnAuthStateChanged registers fn for session changes and returns the func that removes it.
// fn receives nil on sign-out. A payload that fails validation is logged and delivered as nil.
// The repository keeps no reference to the registration; callers must unsubscribe.
func (r *Repository) OnAuthStateChanged(fn func(*domain.User)) (unsubscribe func()) {
	remove := r.auth.OnAuthStateChanged(func(rec provider.Record) {
		if rec == nil {
			fn(nil)
			return
		}
		v, err := schema.ValidateUser(rec)
		if err != nil {
			r.logger.Error("auth state payload rejected", zap.Error(err))
			fn(nil)
			return
		}
		fn(mapper.ToDomainUser(v))
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			if remove != nil {
				remove()
			}
		})
	}
}

// SignInWithProvider completes a federated sign-in with a credential obtained from p.
func (r *Repository) SignInWithProvider(ctx context.Context, p domain.FederatedProvider, cred provider.Credential) (*domain.User, error) {
	ctx, span := r.start(ctx, "SignInWithProvider", attribute.String("provider", string(p)))
	defer span.End()
	rec, err := r.auth.SignInWithCredential(ctx, p, cred)
	if err != nil {
		return nil, r.fail(ctx, span, "SignInWithProvider", err)
	}
	return r.user(ctx, span, "SignInWithProvider", rec)
}

// SignInWithGoogle is SignInWithProvider for Google.
func (r *Repository) SignInWithGoogle(ctx context.Context, cred provider.Credential) (*domain.User, error) {
	return r.SignInWithProvider(ctx, domain.FederatedGoogle, cred)
}

// SignInWithApple is SignInWithProvider for Apple.
func (r *Repository) SignInWithApple(ctx context.Context, cred provider.Credential) (*domain.User, error) {
	return r.SignInWithProvider(ctx, domain.FederatedApple, cred)
}

// SignInWithFacebook is SignInWithProvider for Facebook.
func (r *Repository) SignInWithFacebook(ctx context.Context, cred provider.Credential) (*domain.User, error) {
	return r.SignInWithProvider(ctx, domain.FederatedFacebook, cred)
}

// SignInWithMicrosoft is SignInWithProvider for Microsoft.
func (r *Repository) SignInWithMicrosoft(ctx context.Context, cred provider.Credential) (*domain.User, error) {
	return r.SignInWithProvider(ctx, domain.FederatedMicrosoft, cred)
}

// SendPasswordResetEmail asks the provider to send a password reset message to email.
func (r *Repository) SendPasswordResetEmail(ctx context.Context, email string) error {
	ctx, span := r.start(ctx, "SendPasswordResetEmail")
	defer span.End()
	if err := r.auth.SendPasswordResetEmail(ctx, email); err != nil {
		return r.fail(ctx, span, "SendPasswordResetEmail", err)
	}
	return nil
}

// CreateProfile writes the profile of a newly registered user under userID and returns it as stored.
// The payload is validated before it is written; createdAt and updatedAt come from the store clock.
func (r *Repository) CreateProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	ctx, span := r.start(ctx, "CreateProfile", attribute.String("user_id", userID))
	defer span.End()
	data := mapper.ToExternalProfile(in)
	data["createdAt"] = provider.ServerTimestamp
	data["updatedAt"] = provider.ServerTimestamp
	if _, err := schema.ValidateProfile(data); err != nil {
		return nil, r.fail(ctx, span, "CreateProfile", err)
	}
	if err := r.docs.SetDoc(ctx, r.collections.Profiles, userID, data); err != nil {
		return nil, r.fail(ctx, span, "CreateProfile", err)
	}
	return r.reread(ctx, span, "CreateProfile", userID)
}

// GetProfile returns the profile stored under id, or nil when there is none.
func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	ctx, span := r.start(ctx, "GetProfile", attribute.String("user_id", id))
	defer span.End()
	return r.profile(ctx, span, "GetProfile", id)
}

// UpdateProfile merges the present fields of u into the stored profile and returns the profile as
// re-read from the store. The merge happens in the store, never here.
func (r *Repository) UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.UserProfile, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	ctx, span := r.start(ctx, "UpdateProfile", attribute.String("user_id", id))
	defer span.End()
	data := mapper.ToExternalProfile(u)
	if err := schema.ValidateProfileUpdate(data); err != nil {
		return nil, r.fail(ctx, span, "UpdateProfile", err)
	}
	data["updatedAt"] = provider.ServerTimestamp
	if err := r.docs.UpdateDoc(ctx, r.collections.Profiles, id, data); err != nil {
		return nil, r.fail(ctx, span, "UpdateProfile", err)
	}
	return r.reread(ctx, span, "UpdateProfile", id)
}

// DeactivateProfile flips isActive off. Profiles are never deleted by this layer.
func (r *Repository) DeactivateProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	return r.UpdateProfile(ctx, id, domain.Deactivate())
}

// GetClaims returns the custom claims of userID, or nil when the provider has none attached.
func (r *Repository) GetClaims(ctx context.Context, userID string) (*domain.Claims, error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	ctx, span := r.start(ctx, "GetClaims", attribute.String("user_id", userID))
	defer span.End()
	rec, err := r.claims.Claims(ctx, userID)
	if err != nil {
		return nil, r.fail(ctx, span, "GetClaims", err)
	}
	if rec == nil {
		return nil, nil
	}
	v, err := schema.ValidateClaims(rec)
	if err != nil {
		return nil, r.fail(ctx, span, "GetClaims", err)
	}
	return mapper.ToDomainClaims(v), nil
}

// RefreshToken forces a token refresh for userID and returns the new token.
func (r *Repository) RefreshToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingID
	}
	ctx, span := r.start(ctx, "RefreshToken", attribute.String("user_id", userID))
	defer span.End()
	token, err := r.claims.RefreshToken(ctx, userID)
	if err != nil {
		return "", r.fail(ctx, span, "RefreshToken", err)
	}
	return token, nil
}

// GetAcademia looks id up in the primary collection, then in the legacy one.
// It returns nil when neither holds the record. A read failure stops the lookup.
func (r *Repository) GetAcademia(ctx context.Context, id string) (*domain.Academia, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	ctx, span := r.start(ctx, "GetAcademia", attribute.String("academia_id", id))
	defer span.End()
	for i, collection := range []string{r.collections.Academias, r.collections.AcademiasLegacy} {
		if collection == "" {
			continue
		}
		rec, err := r.docs.GetDoc(ctx, collection, id)
		if err != nil {
			return nil, r.fail(ctx, span, "GetAcademia", err)
		}
		if rec == nil {
			continue
		}
		if i > 0 {
			r.logger.Debug("academia found in legacy collection",
				zap.String("academia_id", id), zap.String("collection", collection))
		}
		v, err := schema.ValidateAcademia(rec)
		if err != nil {
			return nil, r.fail(ctx, span, "GetAcademia", err)
		}
		return mapper.ToDomainAcademia(id, v), nil
	}
	return nil, nil
}

func (r *Repository) user(ctx context.Context, span trace.Span, op string, rec provider.Record) (*domain.User, error) {
	v, err := schema.ValidateUser(rec)
	if err != nil {
		return nil, r.fail(ctx, span, op, err)
	}
	u := mapper.ToDomainUser(v)
	span.SetAttributes(attribute.String("user_id", u.ID))
	return u, nil
}

func (r *Repository) profile(ctx context.Context, span trace.Span, op, id string) (*domain.UserProfile, error) {
	rec, err := r.docs.GetDoc(ctx, r.collections.Profiles, id)
	if err != nil {
		return nil, r.fail(ctx, span, op, err)
	}
	if rec == nil {
		return nil, nil
	}
	v, err := schema.ValidateProfile(rec)
	if err != nil {
		return nil, r.fail(ctx, span, op, err)
	}
	return mapper.ToDomainProfile(id, v), nil
}

// reread fetches a profile right after a write; a missing document at that point is a provider fault.
func (r *Repository) reread(ctx context.Context, span trace.Span, op, id string) (*domain.UserProfile, error) {
	p, err := r.profile(ctx, span, op, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, r.fail(ctx, span, op, provider.NewError(provider.CodeNotFound, "profile missing after write"))
	}
	return p, nil
}

func (r *Repository) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "identity."+op, trace.WithAttributes(attrs...))
}

// fail classifies err, records it on the span and the failure counter, and returns the classified error.
func (r *Repository) fail(ctx context.Context, span trace.Span, op string, err error) error {
	classified := apperrors.Classify(err)
	code := string(apperrors.CodeOf(classified))
	var ve *schema.ValidationError
	if errors.As(classified, &ve) {
		code = "VALIDATION"
	}
	span.RecordError(classified)
	span.SetStatus(otelcodes.Error, code)
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("code", code),
	))
	r.logger.Warn("identity operation failed",
		zap.String("op", op),
		zap.String("code", code),
		zap.Error(classified),
	)
	return classified
}
