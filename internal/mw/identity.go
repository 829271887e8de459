package mw

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetops-backend/internal/model"
)

// CurrentUserKey is the gin context key the identity middleware stores the
// resolved actor under.
const CurrentUserKey = "currentUser"

// UserResolver looks an actor up by id. Satisfied by the store.
type UserResolver interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// Identity resolves the X-User-ID header into a model.User and stores it
// in the request context. Identity is assumed already authenticated
// upstream; this service never validates credentials. Requests without the
// header pass through without an actor — handlers that need one reject
// them via CurrentUser.
func Identity(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID header"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the actor resolved by Identity, or nil when the
// request carried no identity.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
