package auth

import (
	"encoding/json"
	"net/http"
)

// HeaderAuthorization is the header (and gRPC metadata key, lowercased)
// carrying the bearer token.
const HeaderAuthorization = "Authorization"

// problemContentType is the RFC 7807 media type.
const problemContentType = "application/problem+json"

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// HTTPMiddleware authenticates every request through p. Rejected requests
// get 401 with a problem body that never names the rejection reason;
// accepted requests continue with a [User] in their context.
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/v1/me", handleMe)
//	handler := auth.HTTPMiddleware(provider)(mux)
func HTTPMiddleware(p *Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := p.Resolve(r.Context(), r.Header.Get(HeaderAuthorization))
			if !out.Accepted {
				writeUnauthorized(w, r)
				return
			}
			ctx := ContextWithUser(r.Context(), User{ID: out.UserID, TokenKind: out.Kind})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", problemContentType)
	w.Header().Set("WWW-Authenticate", `Bearer`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   "Missing or invalid authentication token",
		Instance: r.URL.Path,
	})
}
