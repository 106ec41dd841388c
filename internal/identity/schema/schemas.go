package schema

// Canonical and legacy user type encodings accepted on profile documents.
var (
	UserTypes       = []string{"student", "instructor", "admin"}
	LegacyUserTypes = []string{"aluno", "instrutor", "administrador"}
)

// UserRecordSchema is the identity record returned by the session API.
var UserRecordSchema = Schema{
	Name: "User Record",
	Fields: []Field{
		{Name: "uid", Type: TypeString, Required: true},
		{Name: "email", Type: TypeString, Required: true},
		{Name: "emailVerified", Type: TypeBool, Default: false},
		{Name: "displayName", Type: TypeString, Nullable: true},
		{Name: "createdAt", Type: TypeTimestamp},
		{Name: "lastSignInAt", Type: TypeTimestamp},
	},
}

// ProfileSchema is the profile document stored under the user's id.
var ProfileSchema = Schema{
	Name: "User Profile",
	Fields: []Field{
		{Name: "name", Type: TypeString, Required: true},
		{Name: "email", Type: TypeString, Required: true},
		{Name: "phone", Type: TypeString, Nullable: true},
		{Name: "userType", Type: TypeString, Enum: UserTypes},
		// tipo is the legacy encoding of userType written by older app versions.
		{Name: "tipo", Type: TypeString, Enum: LegacyUserTypes},
		{Name: "academiaId", Type: TypeString, Nullable: true},
		{Name: "isActive", Type: TypeBool, Default: true},
		{Name: "profileCompleted", Type: TypeBool, Default: false},
		{Name: "currentGraduation", Type: TypeString, Nullable: true},
		{Name: "graduations", Type: TypeStringList},
		{Name: "classIds", Type: TypeStringList},
		{Name: "createdAt", Type: TypeTimestamp},
		{Name: "updatedAt", Type: TypeTimestamp},
	},
}

// ClaimsSchema is the custom claims payload attached to a token.
var ClaimsSchema = Schema{
	Name: "Claims",
	Fields: []Field{
		{Name: "role", Type: TypeString, Required: true},
		{Name: "academiaId", Type: TypeString, Nullable: true},
		{Name: "permissions", Type: TypeStringList},
	},
}

// AcademiaSchema is the organization record.
var AcademiaSchema = Schema{
	Name: "Academia",
	Fields: []Field{
		{Name: "name", Type: TypeString, Required: true},
		{Name: "isActive", Type: TypeBool, Default: true},
		{Name: "settings", Type: TypeObject, Fields: []Field{
			{Name: "timezone", Type: TypeString, Default: "America/Sao_Paulo"},
			{Name: "language", Type: TypeString, Default: "pt-BR"},
			{Name: "currency", Type: TypeString, Default: "BRL"},
			{Name: "notifications", Type: TypeObject, Default: map[string]any{}, Fields: []Field{
				{Name: "email", Type: TypeBool, Default: true},
				{Name: "push", Type: TypeBool, Default: true},
				{Name: "sms", Type: TypeBool, Default: false},
			}},
			{Name: "features", Type: TypeObject, Default: map[string]any{}, Fields: []Field{
				{Name: "graduations", Type: TypeBool, Default: true},
				{Name: "payments", Type: TypeBool, Default: true},
				{Name: "checkIns", Type: TypeBool, Default: true},
				{Name: "schedule", Type: TypeBool, Default: true},
			}},
			{Name: "branding", Type: TypeObject, Default: map[string]any{}, Fields: []Field{
				{Name: "primaryColor", Type: TypeString},
				{Name: "secondaryColor", Type: TypeString},
				{Name: "logoUrl", Type: TypeString, Nullable: true},
			}},
		}},
	},
}

// UserRecord is a validated identity record.
type UserRecord struct {
	UID           string  `mapstructure:"uid"`
	Email         string  `mapstructure:"email"`
	EmailVerified bool    `mapstructure:"emailVerified"`
	DisplayName   *string `mapstructure:"displayName"`
	CreatedAt     any     `mapstructure:"createdAt"`
	LastSignInAt  any     `mapstructure:"lastSignInAt"`
}

// ProfileRecord is a validated profile document.
type ProfileRecord struct {
	Name              string   `mapstructure:"name"`
	Email             string   `mapstructure:"email"`
	Phone             *string  `mapstructure:"phone"`
	UserType          *string  `mapstructure:"userType"`
	Tipo              *string  `mapstructure:"tipo"`
	AcademiaID        *string  `mapstructure:"academiaId"`
	IsActive          bool     `mapstructure:"isActive"`
	ProfileCompleted  bool     `mapstructure:"profileCompleted"`
	CurrentGraduation *string  `mapstructure:"currentGraduation"`
	Graduations       []string `mapstructure:"graduations"`
	ClassIDs          []string `mapstructure:"classIds"`
	CreatedAt         any      `mapstructure:"createdAt"`
	UpdatedAt         any      `mapstructure:"updatedAt"`
}

// ClaimsRecord is a validated custom claims payload.
type ClaimsRecord struct {
	Role        string   `mapstructure:"role"`
	AcademiaID  *string  `mapstructure:"academiaId"`
	Permissions []string `mapstructure:"permissions"`
}

// AcademiaRecord is a validated organization record.
type AcademiaRecord struct {
	Name     string          `mapstructure:"name"`
	IsActive bool            `mapstructure:"isActive"`
	Settings *SettingsRecord `mapstructure:"settings"`
}

type SettingsRecord struct {
	Timezone      string               `mapstructure:"timezone"`
	Language      string               `mapstructure:"language"`
	Currency      string               `mapstructure:"currency"`
	Notifications *NotificationsRecord `mapstructure:"notifications"`
	Features      *FeaturesRecord      `mapstructure:"features"`
	Branding      *BrandingRecord      `mapstructure:"branding"`
}

type NotificationsRecord struct {
	Email bool `mapstructure:"email"`
	Push  bool `mapstructure:"push"`
	SMS   bool `mapstructure:"sms"`
}

type FeaturesRecord struct {
	Graduations bool `mapstructure:"graduations"`
	Payments    bool `mapstructure:"payments"`
	CheckIns    bool `mapstructure:"checkIns"`
	Schedule    bool `mapstructure:"schedule"`
}

type BrandingRecord struct {
	PrimaryColor   string  `mapstructure:"primaryColor"`
	SecondaryColor string  `mapstructure:"secondaryColor"`
	LogoURL        *string `mapstructure:"logoUrl"`
}
