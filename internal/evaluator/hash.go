package evaluator

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// bucketCount is the size of the percentage-rollout bucket space.
const bucketCount = 100

// hashBucket maps a (setting key, stringified attribute value) pair to a
// deterministic bucket in [0, 99]. The algorithm is part of the evaluation
// contract shared with other clients: first 7 hex digits of
// SHA1(settingKey + attributeText), taken modulo 100.
func hashBucket(settingKey, attributeText string) int {
	sum := sha1.Sum([]byte(settingKey + attributeText))
	hexDigest := hex.EncodeToString(sum[:])

	// 7 hex digits always fit in an int64
	n, _ := strconv.ParseInt(hexDigest[:7], 16, 64)
	return int(n % bucketCount)
}

// saltedHash computes the salted comparison hash used by sensitive
// comparators: hex(SHA256(value + configSalt + contextSalt)). The context
// salt is the setting key for setting-level conditions and the segment name
// for segment conditions.
func saltedHash(value []byte, configSalt, contextSalt string) string {
	payload := make([]byte, 0, len(value)+len(configSalt)+len(contextSalt))
	payload = append(payload, value...)
	payload = append(payload, configSalt...)
	payload = append(payload, contextSalt...)

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
