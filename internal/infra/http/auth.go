package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const actorContextKey = "actor"

type sessionClaims struct {
	jti       string
	subject   string
	expiresAt time.Time
}

// requireAdminKey gates the administrative endpoints on X-Admin-Key.
func (s *Server) requireAdminKey(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "admin key not configured")
		return false
	}
	key := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	c.Set(actorContextKey, "admin-key")
	return true
}

// requireSession authenticates a bearer access token and gates it through the
// blacklist. A revoked token and a token that cannot be checked get the same
// client-visible rejection; the logs keep the distinction.
func (s *Server) requireSession(c *gin.Context) (sessionClaims, bool) {
	if len(s.jwtSecret) == 0 {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "session key not configured")
		return sessionClaims{}, false
	}
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return sessionClaims{}, false
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return sessionClaims{}, false
	}

	jti, _ := claims["jti"].(string)
	subject, _ := claims["sub"].(string)
	exp, expErr := claims.GetExpirationTime()
	if jti == "" || subject == "" || expErr != nil || exp == nil {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return sessionClaims{}, false
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(c.Request.Context(), jti)
		if err != nil {
			s.logger.Warn("blacklist check errored, rejecting token",
				zap.String("jti", jti), zap.Error(err))
			revoked = true
		}
		if revoked {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return sessionClaims{}, false
		}
	}

	c.Set(actorContextKey, subject)
	return sessionClaims{jti: jti, subject: subject, expiresAt: exp.Time}, true
}

func extractBearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func actorID(c *gin.Context) string {
	if actor, ok := c.Get(actorContextKey); ok {
		if id, ok := actor.(string); ok {
			return id
		}
	}
	return "anonymous"
}

func marshalValues(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
