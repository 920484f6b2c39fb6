package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// ContainsString returns true iff the provided string slice hay contains string
// needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// ContainsInt returns true iff the provided int slice hay contains int
// needle.
func ContainsInt(hay []int, needle int) bool {
	for _, n := range hay {
		if n == needle {
			return true
		}
	}
	return false
}

// TextToSha256Hash returns the lowercase hex encoded sha256 digest of the
// input text. Used to compute content fingerprints for dedup admission.
func TextToSha256Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func IsProdEnv() bool {
	return os.Getenv("POSTMUX_ENV") == "prod"
}
