package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "reclink/pkg/domain"
	dErrors "reclink/pkg/domain-errors"
)

// Claims are the JWT claims the auth provider issues for access tokens. The
// reconciliation service only consumes them; it never mints tokens in
// production (GenerateAccessToken exists for tests and local development).
type Claims struct {
	Email    string `json:"email"`
	FullName string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// TokenService validates HS256 access tokens and derives the Identity the
// rest of the core operates on.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateAccessToken mints a token for the given identity.
func (s *TokenService) GenerateAccessToken(ident Identity, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:    ident.Email,
		FullName: ident.FullName,
		Phone:    ident.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token and returns the Identity carried
// in its claims.
func (s *TokenService) ValidateToken(tokenString string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token expired")
		}
		return Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	identityID, err := id.ParseIdentityID(claims.Subject)
	if err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not an identity id")
	}
	if claims.Email == "" {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "token missing email claim")
	}

	return Identity{
		ID:       identityID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Phone:    claims.Phone,
	}, nil
}
