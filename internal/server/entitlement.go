package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetEntitlement(c *gin.Context) {
	userID := userIDFromRequest(c)
	if userID == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	entitlement, err := s.entitlementSvc.Get(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entitlement)
}
