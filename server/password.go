package main

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	credentialLen    = sha512.Size // 64 bytes for both the salt and the key
)

// hashPassword derives a verifier pair from a plaintext password. Both the
// key and the fresh random salt come back base64 encoded, ready for storage.
func hashPassword(password string) (encodedHash, encodedSalt string, err error) {
	salt := make([]byte, credentialLen)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, credentialLen, sha512.New)

	return base64.StdEncoding.EncodeToString(key),
		base64.StdEncoding.EncodeToString(salt),
		nil
}

// verifyPassword checks a plaintext password against a stored verifier pair.
// A malformed stored credential verifies as false; callers log it.
func verifyPassword(encodedHash, encodedSalt, password string) bool {
	hash, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return false
	}

	// ConstantTimeCompare reports false on a length mismatch, so a stored
	// hash of the wrong size can never verify.
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, credentialLen, sha512.New)
	return subtle.ConstantTimeCompare(key, hash) == 1
}

// newUser builds a User with freshly derived credentials for registration.
func newUser(username, password string) (*User, error) {
	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:       uuid.New(),
		Username: username,
		Password: hash,
		Salt:     salt,
	}, nil
}
