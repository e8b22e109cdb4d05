// Package pwdhash hashes passwords and session tokens.
// A password hash is 1 version byte, then the salt, then the scrypt output.
package pwdhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt(16384,8,1) takes a few tens of milliseconds on a desktop CPU,
// which is what you want for a login check.
const (
	hashVersion1 = 1
	saltLenV1    = 20
	keyLenV1     = 32
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	hashLenV1    = 1 + saltLenV1 + keyLenV1
)

func makeSalt() []byte {
	salt := [saltLenV1]byte{}
	if n, _ := rand.Read(salt[:]); n != saltLenV1 {
		panic("Error creating password salt")
	}
	return salt[:]
}

func hashWithSalt(salt []byte, password string) []byte {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLenV1)
	if err != nil {
		panic(fmt.Sprintf("Error hashing password: %v", err))
	}
	hash := make([]byte, 0, hashLenV1)
	hash = append(hash, hashVersion1)
	hash = append(hash, salt...)
	hash = append(hash, key...)
	return hash
}

// HashPassword creates a fresh salt and returns the complete hash
func HashPassword(password string) []byte {
	return hashWithSalt(makeSalt(), password)
}

// HashPasswordBase64 is the form we store in the database
func HashPasswordBase64(password string) string {
	return base64.RawStdEncoding.EncodeToString(HashPassword(password))
}

// VerifyHash returns true if a plaintext password matches a stored hash
func VerifyHash(password string, hash []byte) bool {
	if len(hash) != hashLenV1 || hash[0] != hashVersion1 {
		return false
	}
	salt := hash[1 : 1+saltLenV1]
	key, _ := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLenV1)
	return subtle.ConstantTimeCompare(key, hash[1+saltLenV1:]) == 1
}

// VerifyHashBase64 returns true if a plaintext password matches a stored base64 hash
func VerifyHashBase64(password string, hashb64 string) bool {
	raw, _ := base64.RawStdEncoding.DecodeString(hashb64)
	return VerifyHash(password, raw)
}

// HashSessionToken hashes a session token before it touches the database, so
// that the DB's BTree lookup can't leak the token through timing, and a stolen
// DB doesn't contain usable tokens. The plaintext lives only with the client.
func HashSessionToken(value string) []byte {
	h := sha256.Sum256([]byte(value))
	return h[:]
}

// HashSessionTokenBase64 is the form we store in the session table
func HashSessionTokenBase64(value string) string {
	return base64.RawStdEncoding.EncodeToString(HashSessionToken(value))
}
