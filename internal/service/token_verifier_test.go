package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

func signIdentity(t *testing.T, method jwt.SigningMethod, secret string, claims models.IdentityClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenVerifierResolvesPrincipal(t *testing.T) {
	v := NewTokenVerifier("secret", "identity")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	token := signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{
		UserType:         models.UserTypeInstructor,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ins-kim", Issuer: "identity", ExpiresAt: exp},
	})
	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{UserID: "ins-kim", UserType: models.UserTypeInstructor}, p)

	token = signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{
		UserID:           "stu-alice",
		UserType:         models.UserTypeStudent,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", ExpiresAt: exp},
	})
	p, err = v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-alice", p.UserID)
}

func TestTokenVerifierRejects(t *testing.T) {
	v := NewTokenVerifier("secret", "identity")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	valid := jwt.RegisteredClaims{Subject: "u1", Issuer: "identity", ExpiresAt: exp}

	cases := map[string]string{
		"wrong secret": signIdentity(t, jwt.SigningMethodHS256, "other", models.IdentityClaims{UserType: models.UserTypeStudent, RegisteredClaims: valid}),
		"wrong issuer": signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{UserType: models.UserTypeStudent,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "elsewhere", ExpiresAt: exp}}),
		"expired": signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{UserType: models.UserTypeStudent,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "identity", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}),
		"unknown user type": signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{UserType: "parent", RegisteredClaims: valid}),
		"no subject": signIdentity(t, jwt.SigningMethodHS256, "secret", models.IdentityClaims{UserType: models.UserTypeStudent,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", ExpiresAt: exp}}),
		"wrong algorithm": signIdentity(t, jwt.SigningMethodHS512, "secret", models.IdentityClaims{UserType: models.UserTypeStudent, RegisteredClaims: valid}),
		"garbage":         "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}
