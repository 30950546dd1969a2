package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const adminCtxKey ctxKey = iota

type adminAuthMiddleware struct {
	adminUser     string
	adminPassHash string
	logger        *slog.Logger
}

type adminContext struct {
	userName string
}

func (aam *adminAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if aam.adminUser == "" || aam.adminPassHash == "" {
			ErrorResponse("Not found", http.StatusNotFound).ServeHTTP(w, r)
			return
		}

		if adminctx, ok := aam.checkAdminCredentials(r); ok {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminCtxKey, adminctx)))
		} else {
			w.Header().Add("WWW-Authenticate", `Basic realm="list server administration"`)
			ErrorResponse("Unauthorized", http.StatusUnauthorized).ServeHTTP(w, r)
		}
	})
}

func (aam *adminAuthMiddleware) checkAdminCredentials(r *http.Request) (adminContext, bool) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		return adminContext{}, false
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(aam.adminUser)) != 1 {
		return adminContext{}, false
	}

	if err := checkPassword(password, aam.adminPassHash); err != nil {
		aam.logger.Warn("Admin login failed", "user", username, "error", err)
		return adminContext{}, false
	}

	return adminContext{userName: username}, true
}

func checkPassword(password string, passwordHash string) error {
	decoded, err := base64.RawStdEncoding.DecodeString(passwordHash)
	if err != nil {
		return goerr.Wrap(err, "failed to decode password hash")
	}
	return bcrypt.CompareHashAndPassword(decoded, []byte(password))
}

func hashPassword(password string) (string, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", goerr.Wrap(err, "failed to hash password")
	}
	return base64.RawStdEncoding.EncodeToString(passwordHash), nil
}

func adminUserName(r *http.Request) string {
	if ctx, ok := r.Context().Value(adminCtxKey).(adminContext); ok {
		return ctx.userName
	}
	return ""
}
