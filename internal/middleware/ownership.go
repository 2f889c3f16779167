package middleware

import (
	"net/http"

	ownership "anoa.com/forumboard/internal/modules/ownership/service"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequireOwnership lets the request through when the authenticated user may
// change the resource named by the ":id" path parameter. It must run after
// RequireAuth.
func RequireOwnership(svc ownership.OwnershipService, resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			abort(c, apperror.New(http.StatusBadRequest, "invalid "+resourceType+" id", apperror.ErrBadRequest))
			return
		}

		userID, err := response.GetUserID(c)
		if err != nil {
			abort(c, err)
			return
		}

		actor := ownership.Actor{ID: userID, Role: response.GetRole(c)}
		if err := svc.Authorize(c.Request.Context(), actor, resourceType, id); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}
