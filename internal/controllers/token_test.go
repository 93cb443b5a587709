package controllers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerPersistsSeed(t *testing.T) {
	db := newTestDB(t)

	tokens, err := NewTokenManager(db, "seed-token", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "seed-token", tokens.Token())

	// a later start with another seed keeps the stored token
	again, err := NewTokenManager(db, "other", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "seed-token", again.Token())
}

func TestTokenManagerGeneratesToken(t *testing.T) {
	tokens, err := NewTokenManager(newTestDB(t), "", testLogger())
	require.NoError(t, err)

	token := tokens.Token()
	assert.True(t, strings.HasPrefix(token, "unmonitarr-"))
	assert.Len(t, token, len("unmonitarr-")+32)
}

func TestTokenManagerValidateAndRotate(t *testing.T) {
	db := newTestDB(t)
	tokens, err := NewTokenManager(db, "abc", testLogger())
	require.NoError(t, err)

	assert.True(t, tokens.Validate("abc"))
	assert.False(t, tokens.Validate("abd"))
	assert.False(t, tokens.Validate(""))
	assert.True(t, tokens.ValidateAuthorization("Bearer abc"))
	assert.True(t, tokens.ValidateAuthorization("bearer abc"))
	assert.False(t, tokens.ValidateAuthorization("abc"))
	assert.False(t, tokens.ValidateAuthorization("Basic abc"))

	rotated, err := tokens.Rotate()
	require.NoError(t, err)
	assert.NotEqual(t, "abc", rotated)
	assert.False(t, tokens.Validate("abc"))
	assert.True(t, tokens.Validate(rotated))

	stored, err := db.GetSetting("webhook_token")
	require.NoError(t, err)
	assert.Equal(t, rotated, stored)
}
