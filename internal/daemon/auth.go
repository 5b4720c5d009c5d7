package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"pmxfactory/internal/api"
	"pmxfactory/internal/logging"
)

// requireToken guards next with a bearer token check. An empty token leaves
// the API open, which is the default for loopback binds.
func (s *apiServer) requireToken(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		presented, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), want) == 1 {
			next(w, r)
			return
		}
		s.log().Debug("rejected api request",
			logging.String("path", r.URL.Path),
			logging.String("remote", r.RemoteAddr),
		)
		w.Header().Set("WWW-Authenticate", `Bearer realm="pmxfactory"`)
		s.writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Kind: "unauthorized"})
	}
}
