package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	// LocalGateKeyID is the key to retrieve the authenticated key id from context
	LocalGateKeyID = "gate_key_id"

	// keyIDLength is how much of the key hash identifies a gate in logs
	keyIDLength = 12
)

// KeySet holds the sha256 hex digests of the accepted gate keys.
type KeySet map[string]struct{}

func NewKeySet(hashes []string) KeySet {
	set := make(KeySet, len(hashes))
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}

// GateAuth authenticates gate devices by API key. An empty key set rejects
// every request.
func GateAuth(keys KeySet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Extract the key
		apiKey := extractBearerToken(c)
		if apiKey == "" && websocket.IsWebSocketUpgrade(c) {
			// browsers cannot set headers on a websocket handshake
			apiKey = strings.TrimSpace(c.Query("access_token"))
		}
		if apiKey == "" {
			return domain.ErrUnauthorized
		}

		// 2. Compare hashes only
		hash := hashAPIKey(apiKey)
		if _, ok := keys[hash]; !ok {
			return domain.ErrUnauthorized
		}

		c.Locals(LocalGateKeyID, hash[:keyIDLength])
		return c.Next()
	}
}

// GetGateKeyID returns the id of the key that authenticated the request.
func GetGateKeyID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals(LocalGateKeyID).(string)
	if !ok || id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// hashAPIKey generates SHA-256 hash of API Key
func hashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// HashAPIKey is exported for key provisioning tools.
func HashAPIKey(apiKey string) string {
	return hashAPIKey(apiKey)
}
