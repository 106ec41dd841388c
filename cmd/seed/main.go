// seed inserts development sample data for local testing: two academias (one in the legacy
// collection), an admin with claims and profile, and a student whose profile uses the legacy tipo field.
// Idempotent: skips everything if the admin account (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"academia-identity/backend/internal/app"
	"academia-identity/backend/internal/config"
	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/localauth"
	"academia-identity/backend/internal/logger"
	policydomain "academia-identity/backend/internal/policy/domain"
	"academia-identity/backend/internal/policy/engine"
)

const (
	adminEmail       = "admin@example.com"
	studentEmail     = "aluno@example.com"
	devPassword      = "password123"
	devAcademiaID    = "dev-academia-001"
	legacyAcademiaID = "dev-academia-002"
)

// legacyPolicy extends the default permissions of the legacy academia with check-in review for students.
const legacyPolicy = engine.DefaultPolicy + `
permissions contains "checkins:read" if {
	input.role == "student"
}
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close(ctx)

	existing, err := a.Docs.GetDoc(ctx, localauth.EmailsCollection, adminEmail)
	if err != nil {
		log.Fatal("seed check", zap.Error(err))
	}
	if existing != nil {
		log.Info("seed already applied (admin@example.com exists), skipping")
		return
	}

	collections := a.Repository.Collections()
	if err := a.Docs.SetDoc(ctx, collections.Academias, devAcademiaID, provider.Record{
		"name":     "Academia Dev Centro",
		"isActive": true,
		"settings": map[string]any{
			"timezone": "America/Sao_Paulo",
			"features": map[string]any{"payments": false},
			"branding": map[string]any{"primaryColor": "#1d3557", "secondaryColor": "#e63946"},
		},
	}); err != nil {
		log.Fatal("create academia", zap.Error(err))
	}
	if err := a.Docs.SetDoc(ctx, collections.AcademiasLegacy, legacyAcademiaID, provider.Record{
		"name": "Academia Dev Legado",
	}); err != nil {
		log.Fatal("create legacy academia", zap.Error(err))
	}
	if err := a.Policies.Save(ctx, &policydomain.Policy{AcademiaID: legacyAcademiaID, Rules: legacyPolicy, Enabled: true}); err != nil {
		log.Fatal("create academia policy", zap.Error(err))
	}

	admin, err := a.Repository.SignUp(ctx, adminEmail, devPassword)
	if err != nil {
		log.Fatal("create admin", zap.Error(err))
	}
	academiaID := devAcademiaID
	if err := a.Auth.SetClaims(ctx, admin.ID, string(domain.UserTypeAdmin), &academiaID); err != nil {
		log.Fatal("admin claims", zap.Error(err))
	}
	name, email, adminType, completed := "Admin Dev", adminEmail, domain.UserTypeAdmin, true
	if _, err := a.Repository.CreateProfile(ctx, admin.ID, domain.ProfileUpdate{
		Name:             &name,
		Email:            &email,
		UserType:         &adminType,
		AcademiaID:       &academiaID,
		ProfileCompleted: &completed,
	}); err != nil {
		log.Fatal("admin profile", zap.Error(err))
	}

	student, err := a.Repository.SignUp(ctx, studentEmail, devPassword)
	if err != nil {
		log.Fatal("create student", zap.Error(err))
	}
	legacyID := legacyAcademiaID
	if err := a.Auth.SetClaims(ctx, student.ID, string(domain.UserTypeStudent), &legacyID); err != nil {
		log.Fatal("student claims", zap.Error(err))
	}
	// Written directly so the profile keeps the encoding older app versions produced.
	if err := a.Docs.SetDoc(ctx, collections.Profiles, student.ID, provider.Record{
		"name":              "Aluno Dev",
		"email":             studentEmail,
		"tipo":              "aluno",
		"academiaId":        legacyAcademiaID,
		"currentGraduation": "branca",
		"graduations":       []string{"branca"},
		"createdAt":         provider.ServerTimestamp,
		"updatedAt":         provider.ServerTimestamp,
	}); err != nil {
		log.Fatal("student profile", zap.Error(err))
	}
	if err := a.Repository.SignOut(ctx); err != nil {
		log.Fatal("sign out", zap.Error(err))
	}

	log.Info("seed applied",
		zap.String("admin", adminEmail),
		zap.String("student", studentEmail),
		zap.String("password", devPassword),
	)
}
