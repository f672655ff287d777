// Package auth resolves bearer tokens into request-scoped identities.
//
// Every operation on notes and canvases runs on behalf of exactly one
// user. The HTTP middleware verifies the token once per request, makes sure
// a user row exists for the verified subject and stores the resulting
// Identity in the request context. Handlers read it back with FromContext
// and pass the user id explicitly to the service layer.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// ErrUnauthorized is returned when a token is missing or unknown.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is what a verified token says about its bearer.
type Principal struct {
	Subject string
	Name    string
}

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
}

// Verifier checks a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// StaticVerifier accepts a fixed set of tokens.
type StaticVerifier struct {
	tokens []staticToken
}

type staticToken struct {
	token []byte
	p     Principal
}

// NewStaticVerifier maps each token to its principal.
func NewStaticVerifier(tokens map[string]Principal) *StaticVerifier {
	v := &StaticVerifier{}
	for tok, p := range tokens {
		v.tokens = append(v.tokens, staticToken{token: []byte(tok), p: p})
	}
	return v
}

// Verify compares token against every configured token in constant time.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	var found *Principal
	for i := range v.tokens {
		if subtle.ConstantTimeCompare(v.tokens[i].token, []byte(token)) == 1 {
			found = &v.tokens[i].p
		}
	}
	if found == nil {
		return Principal{}, ErrUnauthorized
	}
	return *found, nil
}

// Len reports how many tokens are configured.
func (v *StaticVerifier) Len() int { return len(v.tokens) }

// Users creates or refreshes the user row behind a subject.
type Users interface {
	UpsertUser(ctx context.Context, subject, name string) (*models.User, error)
}

// Resolve turns a principal into an identity backed by a user row.
func Resolve(ctx context.Context, users Users, p Principal) (*Identity, error) {
	u, err := users.UpsertUser(ctx, p.Subject, p.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", p.Subject, err)
	}
	return &Identity{UserID: u.ID, Subject: u.Subject, Name: u.Name}, nil
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header. The
// access_token query parameter is accepted for websocket clients, which
// cannot set headers.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return r.URL.Query().Get("access_token")
}

// Middleware authenticates every request. Failures get a 401 with a
// WWW-Authenticate challenge that points OAuth clients at resourceMetadata
// when it is set.
func Middleware(v Verifier, users Users, resourceMetadata string) func(http.Handler) http.Handler {
	challenge := `Bearer`
	if resourceMetadata != "" {
		challenge = fmt.Sprintf(`Bearer resource_metadata=%q`, resourceMetadata)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := v.Verify(r.Context(), BearerToken(r))
			if err != nil {
				w.Header().Set("WWW-Authenticate", challenge)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id, err := Resolve(r.Context(), users, p)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "identity unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// ProtectedResourceHandler serves OAuth 2.0 protected resource metadata so
// MCP clients can discover where to obtain tokens.
func ProtectedResourceHandler(resource string, authorizationServers []string) http.Handler {
	if authorizationServers == nil {
		authorizationServers = []string{}
	}
	body, _ := json.Marshal(map[string]any{
		"resource":              resource,
		"authorization_servers": authorizationServers,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
