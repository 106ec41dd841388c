// Package app wires the identity stack from configuration: document store, token signing,
// permission engine, federated providers, the local identity provider and the Repository.
package app

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"academia-identity/backend/internal/audit"
	auditrepo "academia-identity/backend/internal/audit/repository"
	"academia-identity/backend/internal/config"
	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
	"academia-identity/backend/internal/docstore"
	"academia-identity/backend/internal/federated"
	"academia-identity/backend/internal/health"
	"academia-identity/backend/internal/identity/repository"
	"academia-identity/backend/internal/localauth"
	"academia-identity/backend/internal/policy/engine"
	policyrepo "academia-identity/backend/internal/policy/repository"
	"academia-identity/backend/internal/security"
	otelsetup "academia-identity/backend/internal/telemetry/otel"
)

// App holds the wired components. Close releases them.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sql.DB
	Docs       *docstore.SQLStore
	Tokens     *security.TokenProvider
	Policies   *policyrepo.DocStoreRepository
	Audit      *auditrepo.DocStoreRepository
	Events     *audit.Publisher
	Evaluator  *engine.OPAEvaluator
	Auth       *localauth.Client
	Repository *repository.Repository
	Health     *health.Checker
	Telemetry  *otelsetup.Providers
}

// New migrates the database to the latest version and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	tel, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = tel

	url, err := db.MigrateURL(cfg.DocstoreDriver, cfg.DSN())
	if err != nil {
		return nil, a.abort(ctx, err)
	}
	if err := migrate.Run(url, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, a.abort(ctx, fmt.Errorf("migrate: %w", err))
	}
	if a.DB, err = db.Open(cfg.DocstoreDriver, cfg.DSN()); err != nil {
		return nil, a.abort(ctx, fmt.Errorf("db: %w", err))
	}
	a.Docs = docstore.New(a.DB, docstore.Dialect(cfg.DocstoreDriver), docstore.WithLogger(logger.Named("docstore")))

	signer, public, err := signingKeys(cfg, logger)
	if err != nil {
		return nil, a.abort(ctx, err)
	}
	a.Tokens = security.NewTokenProvider(signer, public, cfg.JWTIssuer, cfg.JWTAudience, cfg.IDTTL(), cfg.ResetTTL())

	a.Policies = policyrepo.NewDocStoreRepository(a.Docs, policyrepo.DefaultCollection)
	if a.Evaluator, err = engine.NewOPAEvaluator(a.Policies, logger.Named("policy")); err != nil {
		return nil, a.abort(ctx, err)
	}

	a.Audit = auditrepo.NewDocStoreRepository(a.Docs, auditrepo.DefaultCollection)
	var auditor audit.AuditLogger = audit.NewLogger(a.Audit, logger.Named("audit"))
	if a.Events = audit.NewKafkaPublisher(cfg.AuditBrokers(), cfg.AuditKafkaTopic, logger.Named("audit")); a.Events != nil {
		auditor = audit.Multi{auditor, a.Events}
	}
	a.Auth = localauth.New(a.Docs, a.Tokens,
		localauth.WithAuditor(auditor),
		localauth.WithHasher(security.NewHasher(cfg.BcryptCost)),
		localauth.WithEvaluator(a.Evaluator),
		localauth.WithRegistry(federatedRegistry(ctx, cfg, logger)),
		localauth.WithSignInLimit(cfg.SignInInterval(), cfg.SignInBurst),
		localauth.WithLogger(logger.Named("localauth")),
	)

	a.Repository = repository.New(a.Auth, a.Docs, a.Auth,
		repository.WithLogger(logger.Named("identity")),
		repository.WithCollections(repository.Collections{
			Profiles:        cfg.ProfilesCollection,
			Academias:       cfg.AcademiasCollection,
			AcademiasLegacy: cfg.AcademiasLegacyCollection,
		}),
		repository.WithTracerProvider(tel.TracerProvider),
		repository.WithMeterProvider(tel.MeterProvider),
	)
	a.Health = &health.Checker{DB: a.DB, Policy: a.Evaluator}
	return a, nil
}

// Close drains audit events, flushes telemetry and closes the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	errs = append(errs, a.Events.Close())
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Shutdown(ctx))
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func (a *App) abort(ctx context.Context, err error) error {
	if cerr := a.Close(ctx); cerr != nil {
		a.Logger.Warn("cleanup after failed start", zap.Error(cerr))
	}
	return err
}

// signingKeys loads the configured key pair. Without one, outside production, an ephemeral
// P-256 key is generated; tokens it signs do not survive a restart.
func signingKeys(cfg *config.Config, logger *zap.Logger) (crypto.Signer, crypto.PublicKey, error) {
	if cfg.JWTPrivateKey != "" {
		signer, public, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, nil, fmt.Errorf("jwt keys: %w", err)
		}
		return signer, public, nil
	}
	if cfg.Env == "production" {
		return nil, nil, errors.New("jwt keys: JWT_PRIVATE_KEY is not set")
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("jwt keys: %w", err)
	}
	logger.Warn("JWT_PRIVATE_KEY not set; using an ephemeral signing key")
	return key, key.Public(), nil
}

// federatedRegistry discovers every configured provider. A provider whose discovery fails is
// left out and its sign-ins fail with auth/operation-not-allowed.
func federatedRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) *federated.Registry {
	var verifiers []federated.Verifier
	for p, client := range cfg.OIDCClients() {
		v, err := federated.NewOIDC(ctx, federated.Config{
			Provider:     p,
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Tenants:      client.Tenants,
		})
		if err != nil {
			logger.Warn("federated provider disabled", zap.String("provider", string(p)), zap.Error(err))
			continue
		}
		verifiers = append(verifiers, v)
	}
	return federated.NewRegistry(verifiers...)
}
