package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequesterHeader = "X-Requester-ID"
const AdminTokenHeader = "X-Admin-Token"

// RequesterRequired trusts the identity the upstream auth layer resolved
// and put on the request. This service does not authenticate anyone; it
// only refuses calls that arrive without a usable requester id.
func RequesterRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequesterHeader)
		if rid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "missing " + RequesterHeader})
			return
		}
		if _, err := uuid.Parse(rid); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "malformed requester id"})
			return
		}
		c.Set("requesterID", rid)
		c.Next()
	}
}

func AdminOnly(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AdminToken == "" || c.GetHeader(AdminTokenHeader) != cfg.AdminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequesterID pulls the id RequesterRequired stored on the context.
func RequesterID(c *gin.Context) string {
	v, _ := c.Get("requesterID")
	rid, _ := v.(string)
	return rid
}
