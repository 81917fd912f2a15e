package authmock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

type sessionID [16]byte

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = len(sessionID{}) + refreshSecretSize
)

var errMalformedRefresh = errors.New("authmock: malformed refresh token")

func newSessionID() (sessionID, error) {
	var sid sessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s sessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func newRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func hashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// encodeRefreshToken packs the session ID and secret into one opaque token.
func encodeRefreshToken(sid sessionID, secret [refreshSecretSize]byte) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:len(sid)], sid[:])
	copy(raw[len(sid):], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func decodeRefreshToken(token string) (sessionID, [refreshSecretSize]byte, error) {
	var (
		sid    sessionID
		secret [refreshSecretSize]byte
	)
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenRawSize {
		return sid, secret, errMalformedRefresh
	}
	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])
	return sid, secret, nil
}
