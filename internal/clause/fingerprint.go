package clause

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/opensource-finance/covenant/internal/domain"
)

// idLength is the number of hex characters kept for clause ids.
const idLength = 12

// ID returns the stable identifier of a clause body.
// It is a content fingerprint, not a security hash.
func ID(fullText string) string {
	hash := sha256.Sum256([]byte(fullText))
	return hex.EncodeToString(hash[:])[:idLength]
}

// RiskKey returns the cache key for scoring text under a contract type.
// Text is canonicalised (trimmed, lowercased) first because matching is
// case-insensitive, so texts differing only in case score identically.
func RiskKey(text string, contractType domain.ContractType) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	h.Write([]byte{0})
	h.Write([]byte(contractType))
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentFingerprint returns the full-length fingerprint of a document text.
func DocumentFingerprint(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
