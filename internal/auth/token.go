package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
)

var ErrUnauthorized = errors.New("unauthorized")

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RolePractitioner Role = "practitioner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReceptionist, RolePractitioner:
		return true
	}
	return false
}

// Staff is the authenticated clinic employee behind a request.
type Staff struct {
	Subject        string
	Name           string
	Role           Role
	PractitionerID *uuid.UUID
}

// Claims is the token payload.
type Claims struct {
	Name           string `json:"name,omitempty"`
	Role           Role   `json:"role"`
	PractitionerID string `json:"practitioner_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 staff tokens issued by the clinic's identity service.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Parse validates raw and returns the staff it names. Every failure wraps
// ErrUnauthorized.
func (v *Verifier) Parse(raw string) (*Staff, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}

	staff := &Staff{Subject: claims.Subject, Name: claims.Name, Role: claims.Role}
	if claims.PractitionerID != "" {
		id, err := uuid.Parse(claims.PractitionerID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad practitioner_id: %w", ErrUnauthorized, err)
		}
		staff.PractitionerID = &id
	}
	if staff.Role == RolePractitioner && staff.PractitionerID == nil {
		return nil, fmt.Errorf("%w: practitioner token without practitioner_id", ErrUnauthorized)
	}
	return staff, nil
}

// Sign issues a token for staff. Used by the dev CLI and tests.
func (v *Verifier) Sign(staff Staff, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: staff.Name,
		Role: staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if staff.PractitionerID != nil {
		claims.PractitionerID = staff.PractitionerID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenCookie carries the staff token for server-rendered pages, where the
// browser cannot attach an Authorization header.
const TokenCookie = "clinicgrid_token"

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware requires a valid bearer token (or TokenCookie) and stores the
// staff on the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				httperrors.Unauthorized(w, r, fmt.Errorf("%w: missing bearer token", ErrUnauthorized))
				return
			}
			staff, err := v.Parse(raw)
			if err != nil {
				httperrors.Unauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), staff)))
		})
	}
}
