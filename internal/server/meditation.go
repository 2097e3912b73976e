package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	meditationdomain "github.com/stillpoint/sona/internal/meditation/domain"
)

func (s *Server) GenerateMeditation(c *gin.Context) {
	userID := userIDFromRequest(c)
	if userID == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req meditationdomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = userID

	if s.genLimiter.Enabled() {
		allowed, err := s.genLimiter.AllowUser(c.Request.Context(), userID)
		if err != nil {
			// Redis trouble should not block generation.
			s.log.Warn("generation rate limit check failed")
		} else {
			s.metrics.RecordRateLimit(c.Request.Context(), allowed)
			if !allowed {
				AbortWithError(c, meditationdomain.ErrRateLimited)
				return
			}
		}
	}

	meditation, err := s.meditationSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, meditation)
}

func (s *Server) ListMeditations(c *gin.Context) {
	userID := userIDFromRequest(c)
	if userID == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summaries, err := s.meditationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"meditations": summaries})
}
