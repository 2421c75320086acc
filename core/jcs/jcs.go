package jcs

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/gowebpki/jcs"
)

// CanonicalizeJSON returns the RFC 8785 (JCS) canonical form of JSON input.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// IsCanonicalNumber reports whether literal is already the RFC 8785 spelling
// of its IEEE double, meaning canonicalization leaves it unchanged.
func IsCanonicalNumber(literal string) bool {
	parsed, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return false
	}
	canonical, err := jcs.NumberToJSON(parsed)
	return err == nil && canonical == literal
}

// DigestJCS canonicalizes JSON (RFC 8785) and returns a sha256 hex digest.
func DigestJCS(input []byte) (string, error) {
	canonical, err := CanonicalizeJSON(input)
	if err != nil {
		return "", err
	}
	return DigestBytes(canonical), nil
}

func DigestBytes(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
