// Package auth manages accounts and login sessions.
// Accounts are identified by email, and created on their first login.
// A password is optional: once one is set, logins for that account must
// supply it.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/pwdhash"
	"github.com/cyclopcam/vidlabel/pkg/rando"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/www"
)

const SessionCookie = "vidlabel_session"

const sessionTokenChars = 30
const sessionLifetime = 365 * 24 * time.Hour

type AuthServer struct {
	log logs.Log
	db  *anndb.AnnDB
}

func NewAuthServer(log logs.Log, db *anndb.AnnDB) *AuthServer {
	return &AuthServer{
		log: log,
		db:  db,
	}
}

type Credentials struct {
	UserID int64
	Email  string

	// If the request was authenticated with a session token, this is
	// pwdhash.HashSessionTokenBase64(token)
	SessionKey string
}

// AuthenticateRequest authorizes a request from its session cookie or its
// "Authorization: Bearer" header.
// If authorization fails, sends a 401 to 'w' and returns nil.
func (a *AuthServer) AuthenticateRequest(w http.ResponseWriter, r *http.Request) *Credentials {
	token := ""
	if cookie, _ := r.Cookie(SessionCookie); cookie != nil {
		token = cookie.Value
	}
	if token == "" {
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = bearer
		}
	}
	if token != "" {
		if cred := a.authenticateToken(token); cred != nil {
			return cred
		}
	}
	www.SendError(w, "Unauthorized", http.StatusUnauthorized)
	return nil
}

func (a *AuthServer) authenticateToken(token string) *Credentials {
	key := pwdhash.HashSessionTokenBase64(token)
	session := anndb.Session{}
	if err := a.db.DB.Where("key = ?", key).First(&session).Error; err != nil {
		return nil
	}
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Get().Before(time.Now()) {
		a.db.DB.Where("key = ?", key).Delete(&anndb.Session{})
		return nil
	}
	user, err := a.db.GetUser(session.UserID)
	if err != nil {
		return nil
	}
	return &Credentials{
		UserID:     user.ID,
		Email:      user.Email,
		SessionKey: key,
	}
}

// SYNC-LOGIN-RESPONSE-JSON
type loginResponseJSON struct {
	BearerToken string `json:"bearerToken"`
	UserID      int64  `json:"userID"`
	Email       string `json:"email"`
}

// Login authorizes an email (+ password, if the account has one), and issues
// a fresh session as both a cookie and a bearer token.
func (a *AuthServer) Login(w http.ResponseWriter, r *http.Request) {
	email := www.QueryValue(r, "email")
	password := www.QueryValue(r, "password")

	user, err := a.db.GetOrCreateUser(email)
	if errors.Is(err, anndb.ErrInvalidEmail) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)

	if user.Password != "" && !pwdhash.VerifyHashBase64(password, user.Password) {
		www.SendError(w, "Incorrect password", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := a.createSession(user.ID)
	www.Check(err)
	http.SetCookie(w, &http.Cookie{
		Name:    SessionCookie,
		Value:   token,
		Path:    "/",
		Expires: expiresAt,
	})
	a.log.Infof("User %v logged in", user.Email)
	www.SendJSON(w, loginResponseJSON{
		BearerToken: token,
		UserID:      user.ID,
		Email:       user.Email,
	})
}

// Logout erases the calling session
func (a *AuthServer) Logout(w http.ResponseWriter, r *http.Request, cred *Credentials) {
	if cred.SessionKey != "" {
		www.Check(a.db.DB.Where("key = ?", cred.SessionKey).Delete(&anndb.Session{}).Error)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	www.SendOK(w)
}

// EraseOtherSessions deletes all of a user's sessions except the one that
// made this request (eg after a password change).
func (a *AuthServer) EraseOtherSessions(cred *Credentials) error {
	return a.db.DB.Where("user_id = ? AND key != ?", cred.UserID, cred.SessionKey).Delete(&anndb.Session{}).Error
}

func (a *AuthServer) createSession(userID int64) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(sessionLifetime)
	token = rando.StrongRandomAlphaNumChars(sessionTokenChars)
	session := anndb.Session{
		Key:       pwdhash.HashSessionTokenBase64(token),
		UserID:    userID,
		CreatedAt: dbh.MakeIntTime(now),
		ExpiresAt: dbh.MakeIntTime(expiresAt),
	}
	if err = a.db.DB.Create(&session).Error; err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
