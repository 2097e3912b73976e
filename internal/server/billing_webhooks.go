package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

func (s *Server) HandleBillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.billingSvc.HandleWebhook(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, billingdomain.ErrEventAlreadyProcessed),
		errors.Is(err, billingdomain.ErrEventIgnored):
		// Acknowledge so the provider stops redelivering.
		c.Status(http.StatusOK)
	default:
		s.log.Warn("billing webhook rejected", zap.Error(err))
		AbortWithError(c, err)
	}
}
