package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// WebhookVerificationMiddleware verifies the HMAC-SHA256 signature the
// upstream platform attaches to webhook deliveries. The body is re-buffered
// so handlers can still read it.
func WebhookVerificationMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get("X-Shopify-Hmac-Sha256")
			if signature == "" {
				logger.Debug("Missing webhook signature header")
				RespondWithError(w, http.StatusUnauthorized, "missing webhook signature")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read webhook body", zap.Error(err))
				RespondWithError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(body)
			expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(expected), []byte(signature)) {
				logger.Warn("Webhook signature mismatch",
					zap.String("topic", r.Header.Get("X-Shopify-Topic")),
				)
				RespondWithError(w, http.StatusUnauthorized, "invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
