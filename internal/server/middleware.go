package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
)

const (
	HeaderActorID    = "X-Actor-ID"
	HeaderCronSecret = "X-Cron-Secret"
)

// ActorContext copies the authenticated actor, resolved upstream by the auth
// layer, onto the request context for audit records.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actor != "" {
			ctx := auditcontext.WithActorID(c.Request.Context(), actor)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// CronSecretRequired guards the cron triggers with the shared secret. An empty
// configured secret disables the endpoints entirely.
func (s *Server) CronSecretRequired() gin.HandlerFunc {
	expected := []byte(s.cfg.Billing.CronSecret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		provided := strings.TrimSpace(c.GetHeader(HeaderCronSecret))
		if provided == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
				provided = strings.TrimSpace(token)
			}
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
