package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// HashDeviceKey digests a device API key for storage. Keys are high-entropy
// random strings, so a plain unsalted digest is sufficient and keeps lookup
// cheap on every upload.
func HashDeviceKey(apiKey string) string {
	digest := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(digest[:])
}

// CompareDeviceKey checks a presented key against a stored digest in constant
// time.
func CompareDeviceKey(storedHash string, apiKey string) bool {
	presented := HashDeviceKey(apiKey)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(presented)) == 1
}

// GenerateDeviceKey mints a new device API key. The caller shows the key
// once; only the digest and the last four characters are persisted.
func GenerateDeviceKey() (apiKey string, apiKeyHash string, last4 string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	apiKey = base64.RawURLEncoding.EncodeToString(buf)
	apiKeyHash = HashDeviceKey(apiKey)
	last4 = apiKey[len(apiKey)-4:]
	return apiKey, apiKeyHash, last4, nil
}

// HashFileBytes is the content hash used for upload dedup, hex encoded.
func HashFileBytes(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
