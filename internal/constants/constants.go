package constants

const (
	TechNewsAuth = "technews-auth"

	TokenType = "at+jwt"

	ClaimSubject   = "sub"
	ClaimEmail     = "email"
	ClaimName      = "name"
	ClaimTokenID   = "jti"
	ClaimIssuedAt  = "iat"
	ClaimNotBefore = "nbf"
	ClaimExpiry    = "exp"
	ClaimIssuer    = "iss"
	ClaimRole      = "role"

	ErrorCodeInternal       = "InternalError"
	ErrorCodeInvalidRequest = "InvalidRequest"
	ErrorCodeLockedUser     = "LockedUser"
)

// RegisteredClaims are the claims the token issuer sets on every token. Extra
// claims may not use these names.
func RegisteredClaims() []string {
	return []string{
		ClaimSubject,
		ClaimEmail,
		ClaimName,
		ClaimTokenID,
		ClaimIssuedAt,
		ClaimNotBefore,
		ClaimExpiry,
		ClaimIssuer,
	}
}
