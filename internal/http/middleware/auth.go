package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/services"
)

// actorKey is the Gin context key of the authenticated services.Actor.
const actorKey = "actor"

// AccessTokenCookie is the cookie consulted when no Authorization header is
// sent.
const AccessTokenCookie = "access_token"

// TokenResolver turns a bearer credential into an actor.
// services.AuthService implements it.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (services.Actor, error)
}

// Auth rejects requests without a valid credential with 401. The credential
// is read from "Authorization: Bearer <token>" or, failing that, the
// access_token cookie. On success the actor is stored on the Gin context and
// the request-scoped logger gains a user_id field.
func Auth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if ck, err := c.Cookie(AccessTokenCookie); err == nil {
				token = ck
			}
		}
		actor, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			rid, _ := c.Get(requestIDKey)
			c.Header("WWW-Authenticate", `Bearer realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": asString(rid),
				"code":       "unauthorized",
				"message":    "authentication required",
			})
			return
		}
		c.Set(actorKey, actor)
		setLogger(c, LoggerFrom(c).With().Uint("user_id", actor.ID).Logger())
		c.Next()
	}
}

// RequireRole lets the request through only when the actor has one of roles.
// It must run after Auth().
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actorFrom(c)
		if ok {
			for _, r := range roles {
				if a.Role == r {
					c.Next()
					return
				}
			}
		}
		rid, _ := c.Get(requestIDKey)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"request_id": asString(rid),
			"code":       "forbidden",
			"message":    "insufficient role",
		})
	}
}

// ActorFrom returns the actor set by Auth(). Handlers behind Auth() can rely
// on ok being true.
func ActorFrom(c *gin.Context) (services.Actor, bool) {
	return actorFrom(c)
}

func actorFrom(c *gin.Context) (services.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return services.Actor{}, false
	}
	a, ok := v.(services.Actor)
	return a, ok
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
