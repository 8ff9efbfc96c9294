package bookings

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/gin-gonic/gin"
)

// HeaderWebhookSecret carries the shared secret of the calling integration.
const HeaderWebhookSecret = "X-Webhook-Secret"

// WebhookAuthMiddleware accepts a request when X-Webhook-Secret matches one of
// tokens and records the matching integration on the request context. Missing
// and wrong secrets get the same 401 body.
func WebhookAuthMiddleware(tokens []config.IntegrationToken, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader(HeaderWebhookSecret)

		name, ok := matchToken(tokens, secret)
		if !ok {
			log.WebhookAuthFailed(c.FullPath(), c.ClientIP(), secret != "")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("webhookIntegration", name)
		ctx := context.WithValue(c.Request.Context(), logger.IntegrationKey, name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// matchToken compares against every token so timing does not reveal which
// entry or prefix matched.
func matchToken(tokens []config.IntegrationToken, secret string) (string, bool) {
	if secret == "" {
		return "", false
	}
	var (
		name  string
		found bool
	)
	for _, t := range tokens {
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(secret)) == 1 && !found {
			name = t.Name
			found = true
		}
	}
	return name, found
}
