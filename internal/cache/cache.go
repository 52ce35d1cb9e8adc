package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Probe is one provider reachability check
type Probe struct {
	Provider  string    `json:"provider"`
	Endpoint  string    `json:"endpoint"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// ProbeKey generates a cache key for a provider and endpoint pair
func ProbeKey(provider, endpoint string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(provider) + "|" + endpoint))
	return "clinsum:probe:v1:" + hex.EncodeToString(hash[:])
}
