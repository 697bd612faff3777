package httpx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// HMACAuth handles HMAC authentication for the command endpoint
type HMACAuth struct {
	secret      []byte
	requireHMAC bool
	log         logrus.FieldLogger
}

// NewHMACAuth creates a new HMAC authentication handler
func NewHMACAuth(secret string, requireHMAC bool, log logrus.FieldLogger) *HMACAuth {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HMACAuth{
		secret:      []byte(secret),
		requireHMAC: requireHMAC,
		log:         log.WithField("component", "hmac"),
	}
}

// Sign returns the signature a caller must send for payload.
func (h *HMACAuth) Sign(payload []byte) string {
	if len(h.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC validates the signature of a request. When a secret is set a
// present signature is always checked, even if signatures are optional.
func (h *HMACAuth) VerifyHMAC(r *http.Request, payload []byte) bool {
	provided := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if provided == "" {
		if !h.requireHMAC {
			return true
		}
		h.log.WithField("ip", normalizeIP(r.RemoteAddr)).Warn("HMAC verification failed: missing signature header")
		return false
	}

	if len(h.secret) == 0 {
		if !h.requireHMAC {
			return true
		}
		h.log.Error("HMAC verification failed: no secret configured")
		return false
	}

	expected := h.Sign(payload)
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		h.log.WithField("ip", normalizeIP(r.RemoteAddr)).Warn("HMAC verification failed: signature mismatch")
		return false
	}
	return true
}

// normalizeIP extracts and normalizes IP address
func normalizeIP(addr string) string {
	// Handle IPv6 with port: [::1]:8080 -> ::1
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]"); idx > 0 {
			return addr[1:idx]
		}
	}

	// Handle IPv4 with port: 192.168.1.1:8080 -> 192.168.1.1
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

// clientIP extracts the client IP, considering proxy headers only when trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// first hop is the client
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	return normalizeIP(r.RemoteAddr)
}
