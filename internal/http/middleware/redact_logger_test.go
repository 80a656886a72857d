package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func TestRedactingLoggerInfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := withCapturedLogger(t)

	// Simulate the upstream RequestID middleware setting the response header.
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Custom-Secret"}}))

	// Route with params so c.FullPath() is non-empty.
	r.GET("/exhortos/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// PII in query and headers, as a promovente contact lookup might carry.
	q := "correo=maria.lopez+juzgado@example.com&telefono=+52-844-123-4567&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/exhortos/123?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	// Peer credential is masked built-in, no opt-in needed.
	req.Header.Set("X-Api-Key", "llave-nl")
	req.Header.Set("X-Custom-Secret", "shhh")
	// Header with PII that should be pattern-redacted, not fully masked.
	req.Header.Set("X-Contacto", "correo a@b.com id=123e4567-e89b-12d3-a456-426614174000 telefono 555-123-4567")
	req.Header.Set("X-Request-ID", "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) {
		t.Fatalf("expected info log, got: %s", logs)
	}
	if !strings.Contains(logs, `"path":"/exhortos/:id"`) {
		t.Fatalf("expected path to use c.FullPath, got: %s", logs)
	}
	// Request id prefers the response header.
	if !strings.Contains(logs, `"request_id":"rid-resp"`) {
		t.Fatalf("expected request_id from response header, got: %s", logs)
	}
	if !strings.Contains(logs, `[REDACTED:email]`) || !strings.Contains(logs, `[REDACTED:phone]`) || !strings.Contains(logs, `[REDACTED:id]`) {
		t.Fatalf("expected query redactions, got: %s", logs)
	}
	if !strings.Contains(logs, `"Authorization":"[REDACTED]"`) {
		t.Fatalf("Authorization must be masked: %s", logs)
	}
	if !strings.Contains(logs, `"Cookie":"[REDACTED]"`) {
		t.Fatalf("Cookie must be masked: %s", logs)
	}
	if !strings.Contains(logs, `"X-Api-Key":"[REDACTED]"`) {
		t.Fatalf("X-Api-Key must be masked by default: %s", logs)
	}
	if !strings.Contains(logs, `"X-Custom-Secret":"[REDACTED]"`) {
		t.Fatalf("opt-in header must be masked: %s", logs)
	}
	if !strings.Contains(logs, `"X-Contacto":"correo [REDACTED:email] id=[REDACTED:id] telefono [REDACTED:phone]"`) {
		t.Fatalf("expected redacted X-Contacto header, got: %s", logs)
	}
}

func TestRedactingLoggerLevelsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := withCapturedLogger(t)

	// No response header X-Request-ID this time.
	r.Use(RedactingLogger(RedactOptions{}))

	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })             // 404 -> warn
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) }) // 500 -> error
	r.GET("/gin-errors", func(c *gin.Context) {                                        // collected errors -> error
		_ = c.Error(errors.New("acuse rechazado"))
		c.Status(http.StatusBadRequest)
	})

	reqWarn := httptest.NewRequest(http.MethodGet, "/warn", nil)
	reqWarn.Header.Set("X-Request-ID", "rid-warn")
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, reqWarn)

	reqErr := httptest.NewRequest(http.MethodGet, "/error", nil)
	reqErr.Header.Set("X-Request-ID", "rid-err")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, reqErr)

	reqGin := httptest.NewRequest(http.MethodGet, "/gin-errors", nil)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, reqGin)

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("warn log not found or missing request_id fallback: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("error log not found or missing request_id fallback: %s", logs)
	}
	if !strings.Contains(logs, `"errors":"Error #01: acuse rechazado`) {
		t.Fatalf("expected collected gin errors escalated to error level: %s", logs)
	}
}
