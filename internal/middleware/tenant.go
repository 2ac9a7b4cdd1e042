package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kenko/clinic-api/pkg/errors"
	"github.com/kenko/clinic-api/pkg/httputil"
)

const (
	HeaderXOrganizationID = "X-Organization-ID"
	ContextOrganizationID = "organization_id"
)

// Tenant requires an X-Organization-ID header holding a UUID and scopes the
// request to that organization.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderXOrganizationID)
		if raw == "" {
			httputil.RespondWithError(c, errors.NewBadRequest("missing "+HeaderXOrganizationID+" header", nil))
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil || orgID == uuid.Nil {
			httputil.RespondWithError(c, errors.NewBadRequest("invalid "+HeaderXOrganizationID+" header", err))
			return
		}
		c.Set(ContextOrganizationID, orgID)
		c.Next()
	}
}

// OrganizationID returns the organization set by Tenant.
func OrganizationID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextOrganizationID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
