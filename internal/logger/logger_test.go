package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferLogger builds a JSON logger over an in-memory sink so tests can
// inspect the emitted entries.
func bufferLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

func TestProperty_SyncLogEntriesAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sync completion entries carry their fields as JSON", prop.ForAll(
		func(shopDomain string, pages int, created int) bool {
			if shopDomain == "" {
				shopDomain = "box-shop.myshopify.com"
			}

			var buf bytes.Buffer
			logger := bufferLogger(&buf)
			defer logger.Sync()

			logger.Info("Catalog sync completed",
				zap.String("shop_domain", shopDomain),
				zap.Int("pages", pages),
				zap.Int("created", created),
			)

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}

			if entry["message"] != "Catalog sync completed" {
				return false
			}
			if entry["shop_domain"] != shopDomain {
				return false
			}
			if entry["pages"] != float64(pages) {
				return false
			}
			if entry["created"] != float64(created) {
				return false
			}
			if _, ok := entry["timestamp"]; !ok {
				return false
			}

			return true
		},
		gen.AlphaString(),
		gen.IntRange(0, 50),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_SeverityLevelsAreRecorded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("each entry records the level it was logged at", prop.ForAll(
		func(level string) bool {
			var buf bytes.Buffer
			logger := bufferLogger(&buf)
			defer logger.Sync()

			switch level {
			case "debug":
				logger.Debug("Skipping malformed catalog item")
			case "warn":
				logger.Warn("Catalog sync truncated at page ceiling")
			case "error":
				logger.Error("Failed to store catalog item")
			default:
				logger.Info("Bundle generated")
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}

			got, ok := entry["level"].(string)
			if !ok {
				return false
			}
			expected := level
			if level == "info" || (level != "debug" && level != "warn" && level != "error") {
				expected = "info"
			}
			return got == expected
		},
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestErrorEntriesCarryTheErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)
	defer logger.Sync()

	logger.Error("Webhook product update failed",
		zap.Int64("external_id", 42),
		zap.Error(errors.New("product 42 has no variants")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}

	if entry["error"] != "product 42 has no variants" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
	if entry["external_id"] != float64(42) {
		t.Errorf("expected external_id 42, got %v", entry["external_id"])
	}
}

func TestNewBuildsLoggerPerEnvironment(t *testing.T) {
	tests := []struct {
		env        string
		debugShown bool
	}{
		{env: "development", debugShown: true},
		{env: "production", debugShown: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			logger, err := New(tt.env)
			if err != nil {
				t.Fatalf("failed to create logger: %v", err)
			}
			defer logger.Sync()

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugShown {
				t.Errorf("debug enabled = %v, expected %v", got, tt.debugShown)
			}
		})
	}
}
