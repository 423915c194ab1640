/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors.
var (
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenSig     = errors.New("bad signature")
	ErrTokenExpired = errors.New("token expired")
)

const tokenIssuer = "callscript"

var workspaceRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidWorkspace reports whether s is usable as a workspace id.
func ValidWorkspace(s string) bool { return workspaceRe.MatchString(s) }

// session is what a verified token grants.
type session struct {
	Workspace string
	ID        string // jti, the revocation key
	ExpiresAt time.Time
}

// signToken issues an HS256 JWT whose subject is the workspace id and whose
// jti is a fresh uuid.
func signToken(secret, workspace string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   workspace,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// verifyToken checks signature, issuer and expiry at now.
func verifyToken(secret, token string, now time.Time) (session, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return session{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return session{}, ErrTokenSig
	default:
		return session{}, ErrTokenFormat
	}
	if !ValidWorkspace(claims.Subject) || claims.ID == "" {
		return session{}, ErrTokenFormat
	}
	return session{Workspace: claims.Subject, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(auth[len(prefix):])
	return tok, tok != ""
}

func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, workspace string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r)
		if !ok {
			authFailures.WithLabelValues("missing").Inc()
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		sess, err := verifyToken(s.cfg.AuthSecret, token, s.now())
		if err != nil {
			authFailures.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		if s.revoker != nil {
			revoked, err := s.revoker.Revoked(r.Context(), sess.ID)
			if err != nil {
				s.log.ErrorContext(r.Context(), "revocation check failed", slog.Any("err", err))
				writeError(w, http.StatusServiceUnavailable, errors.New("auth unavailable"))
				return
			}
			if revoked {
				authFailures.WithLabelValues("revoked").Inc()
				writeError(w, http.StatusUnauthorized, errors.New("token revoked"))
				return
			}
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next(w, r.WithContext(ctx), sess.Workspace)
	}
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) (session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session)
	return sess, ok
}

// POST /api/auth/revoke revokes the presented token until it expires.
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request, _ string) {
	if s.revoker == nil {
		writeError(w, http.StatusNotImplemented, errors.New("token revocation is not configured"))
		return
	}
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("missing session"))
		return
	}
	if err := s.revoker.Revoke(r.Context(), sess.ID, sess.ExpiresAt); err != nil {
		s.log.ErrorContext(r.Context(), "revoke failed", slog.Any("err", err))
		writeError(w, http.StatusServiceUnavailable, errors.New("auth unavailable"))
		return
	}
	s.log.InfoContext(r.Context(), "token revoked", slog.String("workspace", sess.Workspace))
	w.WriteHeader(http.StatusNoContent)
}
