package rtc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errInvalidToken = errors.New("rtc: invalid token")
	errNoSecret     = errors.New("rtc: " + ReasonNoSecret)
)

// verify parses a token the way a transport server would: same secret,
// same app id, not expired at i.now.
func (i *Issuer) verify(token string) (Claims, error) {
	if len(i.secret) == 0 {
		return Claims{}, errNoSecret
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.AppID != i.appID {
		return Claims{}, fmt.Errorf("%w: app id mismatch", errInvalidToken)
	}
	return claims, nil
}

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("app-1", "cert", time.Hour)

	cred := iss.Issue("live_7_01J", RolePublisher)
	require.True(t, cred.Issued())
	assert.Empty(t, cred.Reason)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 5*time.Second)

	claims, err := iss.verify(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, "app-1", claims.AppID)
	assert.Equal(t, "live_7_01J", claims.Channel)
	assert.Equal(t, RolePublisher, claims.Role)
}

func TestIssueWithoutSecretIsAbsent(t *testing.T) {
	iss := NewIssuer("app-1", "", time.Hour)

	cred := iss.Issue("live_7_01J", RoleSubscriber)
	assert.False(t, cred.Issued())
	assert.Empty(t, cred.Token)
	assert.Equal(t, ReasonNoSecret, cred.Reason)

	_, err := iss.verify("anything")
	assert.ErrorIs(t, err, errNoSecret)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	iss := NewIssuer("app-1", "cert", time.Minute)

	other := NewIssuer("app-1", "other-cert", time.Minute)
	_, err := iss.verify(other.Issue("c", RoleSubscriber).Token)
	assert.ErrorIs(t, err, errInvalidToken)

	otherApp := NewIssuer("app-2", "cert", time.Minute)
	_, err = iss.verify(otherApp.Issue("c", RoleSubscriber).Token)
	assert.ErrorIs(t, err, errInvalidToken)

	cred := iss.Issue("c", RoleSubscriber)
	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.verify(cred.Token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestDefaultTTL(t *testing.T) {
	iss := NewIssuer("app", "cert", 0)
	cred := iss.Issue("c", RolePublisher)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), cred.ExpiresAt, 5*time.Second)
}
