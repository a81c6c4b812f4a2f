package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConsoleURLTTL bounds how long a signed serial-console WebSocket URL
// remains valid after GET /vms/{id}/serial-console issues it.
const ConsoleURLTTL = 60 * time.Second

// signConsoleToken builds an opaque "{vmName}.{expiry}.{signature}" token
// authorizing one WebSocket connect to vmName's console before expiry.
func signConsoleToken(key []byte, vmName string, now time.Time) string {
	expiry := now.Add(ConsoleURLTTL).Unix()
	payload := fmt.Sprintf("%s.%d", vmName, expiry)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return payload + "." + sig
}

// verifyConsoleToken checks token was signed by key for vmName and has not
// expired.
func verifyConsoleToken(key []byte, vmName, token string, now time.Time) bool {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return false
	}
	tokenVM, expiryStr, sig := parts[0], parts[1], parts[2]
	if tokenVM != vmName {
		return false
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil || now.Unix() > expiry {
		return false
	}

	payload := tokenVM + "." + expiryStr
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(sig), []byte(want)) == 1
}
