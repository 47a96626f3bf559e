package scoring

import (
	"crypto/sha512"
	"encoding/hex"
	"time"
)

const (
	// AdminLogin is the reserved login granted the fixed score.
	AdminLogin = "admin"

	salt      = "Otus"
	adminSalt = "42"
)

// AuthContext is the per-call authentication context, built once from the
// parsed payload and never persisted.
type AuthContext struct {
	Login   string
	Account string
	Token   string
	IsAdmin bool
}

// NewAuthContext builds an AuthContext from the payload credentials.
func NewAuthContext(login, account, token string) AuthContext {
	return AuthContext{
		Login:   login,
		Account: account,
		Token:   token,
		IsAdmin: login == AdminLogin,
	}
}

// CheckAuth reports whether the supplied token matches the expected SHA-512
// digest. Admin tokens are derived from the wall-clock hour and the admin
// salt; everyone else from account+login+salt. An empty account or login
// simply feeds an empty string into the digest.
func CheckAuth(auth AuthContext, now time.Time) bool {
	var digest string
	if auth.IsAdmin {
		digest = AdminToken(now)
	} else {
		digest = UserToken(auth.Account, auth.Login)
	}
	return digest == auth.Token
}

// AdminToken returns the admin digest valid for the hour containing now.
func AdminToken(now time.Time) string {
	return sha512Hex(now.Format("2006010215") + adminSalt)
}

// UserToken returns the digest expected for a non-admin caller.
func UserToken(account, login string) string {
	return sha512Hex(account + login + salt)
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}
