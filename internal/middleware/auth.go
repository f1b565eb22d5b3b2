package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mak3-crm/internal/access"
	"mak3-crm/internal/models"
)

const actorContextKey = "currentActor"

// AuthCookieName holds the JWT when cookie auth is used instead of the
// Authorization header.
const AuthCookieName = "auth_token"

// cachedActor — данные пользователя в кэше, чтобы не ходить в БД на каждый запрос.
type cachedActor struct {
	UserID    uint            `json:"user_id"`
	Role      models.UserRole `json:"role"`
	PartnerID *uint           `json:"partner_id"`
}

const actorCacheTTL = 5 * time.Minute

// Auth validates the bearer token and puts the resolved Actor on the context.
// Redis is optional; without it every request loads the user from the DB.
func Auth(db *gorm.DB, rdb *redis.Client, secret []byte, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(AuthCookieName)
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				abortUnauthorized(c, "authorization token not provided")
				return
			}
			tokenStr = parts[1]
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			abortUnauthorized(c, "invalid user id in token")
			return
		}
		userID := uint(userIDFloat)

		cacheKey := fmt.Sprintf("user:%d:data", userID)
		if rdb != nil {
			if cached, err := rdb.Get(c.Request.Context(), cacheKey).Result(); err == nil {
				var data cachedActor
				if json.Unmarshal([]byte(cached), &data) == nil {
					c.Set(actorContextKey, access.Actor{ID: data.UserID, Role: data.Role, PartnerID: data.PartnerID})
					c.Next()
					return
				}
			} else if !errors.Is(err, redis.Nil) {
				log.Error("redis GET failed", "error", err, "user_id", userID)
			}
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			abortUnauthorized(c, "user from token not found")
			return
		}
		if !user.IsActive {
			abortUnauthorized(c, "user is deactivated")
			return
		}

		if rdb != nil {
			data := cachedActor{UserID: user.ID, Role: user.Role, PartnerID: user.PartnerID}
			if payload, err := json.Marshal(data); err == nil {
				if err := rdb.Set(c.Request.Context(), cacheKey, payload, actorCacheTTL).Err(); err != nil {
					log.Warn("failed to cache user data", "error", err, "user_id", userID)
				}
			}
		}

		c.Set(actorContextKey, access.ActorFromUser(&user))
		c.Next()
	}
}

// RequireRole allows only the listed roles past. Used for admin surfaces like
// pipeline management; row-level decisions stay in the services.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := map[models.UserRole]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		if _, ok := roleSet[actor.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the request's actor set by Auth.
func ActorFrom(c *gin.Context) (access.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return access.Actor{}, false
	}
	actor, ok := v.(access.Actor)
	return actor, ok
}

// InvalidateActorCache drops the cached role/partner data after a user change.
func InvalidateActorCache(ctx *gin.Context, rdb *redis.Client, userID uint) {
	if rdb == nil {
		return
	}
	_ = rdb.Del(ctx.Request.Context(), fmt.Sprintf("user:%d:data", userID)).Err()
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
