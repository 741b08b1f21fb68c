// Package rtc mints the short-lived credentials that let a host publish and
// listeners subscribe on a real-time audio channel.
//
// A credential is an HS256 JWT over {app_id, channel, role, iat, exp} signed
// with the application certificate.  When no certificate is configured the
// issuer still answers, but with an absent Credential explaining why, so the
// caller can carry on and let the client connect without a token.
package rtc

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the transport permission granted by a credential.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

// ReasonNoSecret is reported when the signing certificate is not configured.
const ReasonNoSecret = "signing secret not configured"

// Credential is either issued (Token and ExpiresAt set) or absent (Reason
// set).  Callers branch on Issued instead of testing for an empty string.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	Reason    string
}

// Issued reports whether the credential carries a token.
func (c Credential) Issued() bool { return c.Token != "" }

// Claims is the payload of a transport token.
type Claims struct {
	AppID   string `json:"app_id"`
	Channel string `json:"channel"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs transport tokens for one application.
type Issuer struct {
	appID  string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer.  A non-positive ttl falls back to two hours.
func NewIssuer(appID, certificate string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Issuer{appID: appID, secret: []byte(certificate), ttl: ttl, now: time.Now}
}

// AppID returns the application identifier clients need to connect.
func (i *Issuer) AppID() string { return i.appID }

// Issue mints a credential granting role on channel.  The token is not
// revocable; it stays valid until it expires whatever happens to the
// session.
func (i *Issuer) Issue(channel string, role Role) Credential {
	if len(i.secret) == 0 {
		return Credential{Reason: ReasonNoSecret}
	}
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		AppID:   i.appID,
		Channel: channel,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{Reason: fmt.Sprintf("sign: %v", err)}
	}
	return Credential{Token: signed, ExpiresAt: exp}
}
