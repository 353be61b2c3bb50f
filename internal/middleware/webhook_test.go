package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerificationAcceptsValidSignature(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"id": 42, "title": "Mug"}`)

	var handlerBody []byte
	handler := WebhookVerificationMiddleware(secret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/webhooks/products/update", bytes.NewReader(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", signBody(secret, body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	// The body must still be readable downstream after verification.
	if !bytes.Equal(handlerBody, body) {
		t.Errorf("Handler received altered body: %s", handlerBody)
	}
}

func TestWebhookVerificationRejectsBadSignature(t *testing.T) {
	body := []byte(`{"id": 42}`)

	handler := WebhookVerificationMiddleware("webhook-secret", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached with a bad signature")
	}))

	req := httptest.NewRequest("POST", "/webhooks/products/update", bytes.NewReader(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", signBody("other-secret", body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestWebhookVerificationRejectsMissingSignature(t *testing.T) {
	handler := WebhookVerificationMiddleware("webhook-secret", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached without a signature")
	}))

	req := httptest.NewRequest("POST", "/webhooks/products/update", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestWebhookVerificationSignatureDependsOnBody(t *testing.T) {
	secret := "webhook-secret"
	signature := signBody(secret, []byte(`{"id": 1}`))

	handler := WebhookVerificationMiddleware(secret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached when the body was tampered with")
	}))

	// Same signature, different body.
	req := httptest.NewRequest("POST", "/webhooks/products/update", bytes.NewReader([]byte(`{"id": 2}`)))
	req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}
