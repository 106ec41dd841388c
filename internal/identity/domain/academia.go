package domain

// Academia is a tenant (a gym or martial-arts school). Read-only from this layer.
type Academia struct {
	ID       string
	Name     string
	IsActive bool
	Settings *AcademiaSettings
}

// AcademiaSettings holds optional per-tenant preferences.
type AcademiaSettings struct {
	Timezone      string
	Language      string
	Currency      string
	Notifications NotificationSettings
	Features      FeatureSettings
	Branding      BrandingSettings
}

type NotificationSettings struct {
	Email bool
	Push  bool
	SMS   bool
}

type FeatureSettings struct {
	Graduations bool
	Payments    bool
	CheckIns    bool
	Schedule    bool
}

type BrandingSettings struct {
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
}
