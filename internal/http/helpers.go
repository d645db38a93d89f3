package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salvadanaio/internal/core"
)

// OwnerHeader carries the authenticated owner id set by the upstream proxy.
const OwnerHeader = "X-Owner-ID"

// ownerID returns the caller's owner id, or a validation error when the
// header is missing.
func ownerID(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(OwnerHeader))
	if id == "" {
		return "", &core.ValidationError{Field: "owner_id", Reason: "missing " + OwnerHeader + " header"}
	}
	return id, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// requestID returns the id assigned by the request middleware, generating one
// when the request did not pass through it.
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return generateRequestID()
}
