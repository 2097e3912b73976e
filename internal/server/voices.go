package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListVoices(c *gin.Context) {
	voices, err := s.voices.Voices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voices": voices})
}
