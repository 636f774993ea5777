package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "privata/pkg/domain-errors"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	svc := New("k", "privata")
	token, err := svc.GenerateOperatorToken("dpo@example.com", []string{"dpo"}, time.Minute)
	require.NoError(t, err)

	actor, err := svc.ValidateOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dpo@example.com", actor)
}

func TestDownloadTokenIsNotAnOperatorToken(t *testing.T) {
	svc := New("k", "privata")
	token, _, err := svc.GenerateDownloadToken("req-1", "user-1", time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateOperatorToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	rid, sub, err := svc.ValidateDownloadToken(token)
	require.NoError(t, err)
	assert.Equal(t, "req-1", rid)
	assert.Equal(t, "user-1", sub)
}

func TestExpiredTokenRejected(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := issuedAt
	svc := New("k", "privata", WithClock(func() time.Time { return clock }))

	token, expires, err := svc.GenerateDownloadToken("req-1", "user-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), expires)

	clock = issuedAt.Add(2 * time.Hour)
	_, _, err = svc.ValidateDownloadToken(token)
	require.Error(t, err)
	assert.Equal(t, "token expired", err.Error())
}

func TestWrongKeyRejected(t *testing.T) {
	token, err := New("a", "privata").GenerateOperatorToken("x", nil, time.Minute)
	require.NoError(t, err)
	_, err = New("b", "privata").ValidateOperatorToken(token)
	assert.Error(t, err)
}
