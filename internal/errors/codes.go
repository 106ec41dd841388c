// Package errors provides the closed error taxonomy surfaced by the identity layer.
package errors

// Code is a machine-readable error kind.
type Code string

const (
	// CodeInvalidCredentials covers wrong passwords, unknown accounts and rejected federated credentials.
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	// CodeAccountExists is returned when signing up with an email or credential already in use.
	CodeAccountExists Code = "ACCOUNT_EXISTS"
	// CodeNetwork covers transport failures and timeouts reaching the provider.
	CodeNetwork Code = "NETWORK"
	// CodeRateLimited is returned when the provider throttles the caller.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeProvider is any other provider failure. The original message is kept for diagnostics.
	CodeProvider Code = "PROVIDER"
)

// Codes lists every code of the taxonomy.
var Codes = []Code{CodeInvalidCredentials, CodeAccountExists, CodeNetwork, CodeRateLimited, CodeProvider}
