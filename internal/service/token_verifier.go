package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

// TokenVerifier validates identity tokens issued upstream and resolves them
// into a Principal.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier constructs a verifier for HS256 tokens. An empty issuer skips the iss check.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the caller it identifies.
func (v *TokenVerifier) Verify(tokenString string) (models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Principal{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	if !claims.UserType.Valid() {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthorized, "token has an unknown user_type")
	}
	return models.Principal{UserID: userID, UserType: claims.UserType}, nil
}
