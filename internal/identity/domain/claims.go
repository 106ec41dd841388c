package domain

// Claims is the authorization snapshot attached to a user's token. It is derived on demand and never persisted here.
type Claims struct {
	Role        string
	AcademiaID  *string
	Permissions []string
}

// HasPermission reports whether the claims grant permission p.
func (c *Claims) HasPermission(p string) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Permissions {
		if have == p {
			return true
		}
	}
	return false
}
