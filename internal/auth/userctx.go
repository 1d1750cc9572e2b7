package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/internal/users"
)

// WithUser makes sure the authenticated user has a profile document. It must
// run after FirebaseAuthMiddleware or OptionalUser.
func WithUser(userRepo *users.Repo, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserFirebaseUID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
			c.Abort()
			return
		}

		err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			FirebaseUID: uid,
			Email:       c.GetString(CtxEmail),
			DisplayName: c.GetHeader("X-User-Name"),
			PhotoURL:    c.GetHeader("X-User-Photo"),
		})
		if err != nil {
			log.Error().Err(err).Str("user_id", uid).Msg("ensure user failed")
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Next()
	}
}
