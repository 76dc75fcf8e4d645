package middleware

import (
	"context"
	"net/http"

	"github.com/dukerupert/familytask/internal/session"
	"github.com/dukerupert/familytask/internal/store"
)

const SessionCookieName = "familytask_session"

// SessionSource is the part of session.Registry the middleware needs.
type SessionSource interface {
	Get(ctx context.Context, token string) (*session.Session, error)
	Create() (*session.Session, error)
}

// Sessions attaches the browser's session to the request context, starting a
// new anonymous one when the cookie is missing or no longer valid.
func Sessions(src SessionSource, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *session.Session
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				s, err := src.Get(r.Context(), cookie.Value)
				if err != nil {
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
				sess = s
			}

			if sess == nil {
				s, err := src.Create()
				if err != nil {
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
				sess = s
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sess.Token,
					Path:     "/",
					MaxAge:   int(store.SessionTTL.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequireUser rejects requests whose session is not signed in.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok || !sess.Sync.Snapshot().LoggedIn() {
			redirectHome(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
