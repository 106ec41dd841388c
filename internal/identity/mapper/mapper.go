// Package mapper converts validated provider records into domain entities and back.
// Every function is total: inputs were already checked by the schema package.
package mapper

import (
	"time"

	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/schema"
)

// LegacyUserTypes translates the legacy tipo encoding to the canonical user type.
var LegacyUserTypes = map[string]domain.UserType{
	"aluno":         domain.UserTypeStudent,
	"instrutor":     domain.UserTypeInstructor,
	"administrador": domain.UserTypeAdmin,
}

// DefaultUserType is used when a profile carries neither userType nor tipo.
const DefaultUserType = domain.UserTypeStudent

// NormalizeUserType picks the canonical field first, then the legacy table, then DefaultUserType.
func NormalizeUserType(canonical, legacy *string) domain.UserType {
	if canonical != nil {
		if t := domain.UserType(*canonical); t.Valid() {
			return t
		}
	}
	if legacy != nil {
		if t, ok := LegacyUserTypes[*legacy]; ok {
			return t
		}
	}
	return DefaultUserType
}

// ToDomainUser maps a validated identity record.
func ToDomainUser(r *schema.UserRecord) *domain.User {
	u := &domain.User{
		ID:            r.UID,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		CreatedAt:     timeOrNow(r.CreatedAt),
	}
	if t, ok := ToTime(r.LastSignInAt); ok {
		u.LastSignInAt = &t
	}
	return u
}

// ToDomainProfile maps a validated profile document stored under id.
func ToDomainProfile(id string, r *schema.ProfileRecord) *domain.UserProfile {
	return &domain.UserProfile{
		ID:                id,
		Name:              r.Name,
		Email:             r.Email,
		Phone:             cloneString(r.Phone),
		UserType:          NormalizeUserType(r.UserType, r.Tipo),
		AcademiaID:        cloneString(r.AcademiaID),
		IsActive:          r.IsActive,
		ProfileCompleted:  r.ProfileCompleted,
		CurrentGraduation: cloneString(r.CurrentGraduation),
		Graduations:       cloneList(r.Graduations),
		ClassIDs:          cloneList(r.ClassIDs),
		CreatedAt:         timeOrNow(r.CreatedAt),
		UpdatedAt:         timeOrNow(r.UpdatedAt),
	}
}

// ToDomainClaims maps a validated claims payload.
func ToDomainClaims(r *schema.ClaimsRecord) *domain.Claims {
	return &domain.Claims{
		Role:        r.Role,
		AcademiaID:  cloneString(r.AcademiaID),
		Permissions: cloneList(r.Permissions),
	}
}

// ToDomainAcademia maps a validated organization record stored under id.
func ToDomainAcademia(id string, r *schema.AcademiaRecord) *domain.Academia {
	a := &domain.Academia{
		ID:       id,
		Name:     r.Name,
		IsActive: r.IsActive,
	}
	if s := r.Settings; s != nil {
		settings := &domain.AcademiaSettings{
			Timezone: s.Timezone,
			Language: s.Language,
			Currency: s.Currency,
		}
		if n := s.Notifications; n != nil {
			settings.Notifications = domain.NotificationSettings{Email: n.Email, Push: n.Push, SMS: n.SMS}
		}
		if f := s.Features; f != nil {
			settings.Features = domain.FeatureSettings{
				Graduations: f.Graduations,
				Payments:    f.Payments,
				CheckIns:    f.CheckIns,
				Schedule:    f.Schedule,
			}
		}
		if b := s.Branding; b != nil {
			settings.Branding = domain.BrandingSettings{
				PrimaryColor:   b.PrimaryColor,
				SecondaryColor: b.SecondaryColor,
			}
			if b.LogoURL != nil {
				settings.Branding.LogoURL = *b.LogoURL
			}
		}
		a.Settings = settings
	}
	return a
}

// ToExternalProfile maps a partial profile to the fields of a profile document. Only fields present
// in u are emitted; the legacy tipo field is never written.
func ToExternalProfile(u domain.ProfileUpdate) map[string]any {
	out := make(map[string]any)
	if u.Name != nil {
		out["name"] = *u.Name
	}
	if u.Email != nil {
		out["email"] = *u.Email
	}
	if u.Phone != nil {
		out["phone"] = *u.Phone
	}
	if u.UserType != nil {
		out["userType"] = string(*u.UserType)
	}
	if u.AcademiaID != nil {
		out["academiaId"] = *u.AcademiaID
	}
	if u.IsActive != nil {
		out["isActive"] = *u.IsActive
	}
	if u.ProfileCompleted != nil {
		out["profileCompleted"] = *u.ProfileCompleted
	}
	if u.CurrentGraduation != nil {
		out["currentGraduation"] = *u.CurrentGraduation
	}
	if u.Graduations != nil {
		out["graduations"] = cloneList(u.Graduations)
	}
	if u.ClassIDs != nil {
		out["classIds"] = cloneList(u.ClassIDs)
	}
	return out
}

// ToProfileUpdate returns the partial carrying every field of p, for writing a complete profile.
func ToProfileUpdate(p *domain.UserProfile) domain.ProfileUpdate {
	name, email := p.Name, p.Email
	userType := p.UserType
	isActive := p.IsActive
	completed := p.ProfileCompleted
	return domain.ProfileUpdate{
		Name:              &name,
		Email:             &email,
		Phone:             cloneString(p.Phone),
		UserType:          &userType,
		AcademiaID:        cloneString(p.AcademiaID),
		IsActive:          &isActive,
		ProfileCompleted:  &completed,
		CurrentGraduation: cloneString(p.CurrentGraduation),
		Graduations:       nonNil(p.Graduations),
		ClassIDs:          nonNil(p.ClassIDs),
	}
}

func timeOrNow(v any) time.Time {
	if t, ok := ToTime(v); ok {
		return t
	}
	return time.Now().UTC()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return cloneList(in)
}
