package main

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	token, err := issueToken([]byte(testSecret), "  scanner-1 ", time.Hour)
	require.NoError(t, err)

	subject, err := parseToken([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, "scanner-1", subject)

	_, err = parseToken([]byte("other-secret"), token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	expired, err := issueToken([]byte(testSecret), "scanner-1", -time.Minute)
	require.NoError(t, err)
	_, err = parseToken([]byte(testSecret), expired)
	assert.ErrorIs(t, err, errInvalidToken)

	// signed with the right key but no issuer or expiry
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = parseToken([]byte(testSecret), foreign)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = parseToken([]byte(testSecret), "not-a-token")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestIssueTokenValidatesInput(t *testing.T) {
	_, err := issueToken([]byte(testSecret), " ", time.Hour)
	assert.Error(t, err)
	_, err = issueToken(nil, "scanner-1", time.Hour)
	assert.Error(t, err)
}
