package domain

import "time"

// UserType is the canonical role a profile plays inside an academia.
type UserType string

const (
	UserTypeStudent    UserType = "student"
	UserTypeInstructor UserType = "instructor"
	UserTypeAdmin      UserType = "admin"
)

// Valid reports whether t is one of the three canonical user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeStudent, UserTypeInstructor, UserTypeAdmin:
		return true
	}
	return false
}

// UserProfile is the application-level profile of a user. ID always equals the owning User.ID.
type UserProfile struct {
	ID                string
	Name              string
	Email             string
	Phone             *string
	UserType          UserType
	AcademiaID        *string
	IsActive          bool
	ProfileCompleted  bool
	CurrentGraduation *string
	Graduations       []string
	ClassIDs          []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProfileUpdate is a partial UserProfile. Nil pointers and nil slices are absent fields;
// a non-nil empty slice clears the list.
type ProfileUpdate struct {
	Name              *string
	Email             *string
	Phone             *string
	UserType          *UserType
	AcademiaID        *string
	IsActive          *bool
	ProfileCompleted  *bool
	CurrentGraduation *string
	Graduations       []string
	ClassIDs          []string
}

// IsEmpty reports whether the update carries no field.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.UserType == nil &&
		u.AcademiaID == nil && u.IsActive == nil && u.ProfileCompleted == nil &&
		u.CurrentGraduation == nil && u.Graduations == nil && u.ClassIDs == nil
}

// Deactivate returns the update that flips a profile to inactive. Profiles are never deleted.
func Deactivate() ProfileUpdate {
	inactive := false
	return ProfileUpdate{IsActive: &inactive}
}
