package www

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName   = "tilledge_session"
	sessionMaxAge = 7 * 24 * 60 * 60 // one week; registers stay logged in across shifts
)

// sessionStore wraps cookie sessions for the console. The secret comes from
// config as base64; anything too short is replaced with a random key, which
// trades persistent logins across restarts for never running with a weak key.
type sessionStore struct {
	cookies *sessions.CookieStore
}

func newSessionStore(secret string) *sessionStore {
	key, _ := base64.StdEncoding.DecodeString(secret)
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionStore{cookies: cs}
}

// get never fails: a bad or missing cookie yields a fresh empty session.
func (s *sessionStore) get(r *http.Request) *sessions.Session {
	sess, _ := s.cookies.Get(r, sessionName)
	return sess
}

func (s *sessionStore) getUser(r *http.Request) (string, bool) {
	username, ok := s.get(r).Values["username"].(string)
	return username, ok
}

func (s *sessionStore) setUser(w http.ResponseWriter, r *http.Request, username string) {
	sess := s.get(r)
	sess.Values["username"] = username
	sess.Save(r, w)
}

func (s *sessionStore) clear(w http.ResponseWriter, r *http.Request) {
	sess := s.get(r)
	delete(sess.Values, "username")
	sess.Options.MaxAge = -1
	sess.Save(r, w)
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
