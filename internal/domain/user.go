// Package domain contains show entities and their setters, no I/O.
package domain

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	MaxNameLen  = 36
	MaxADNLen   = 64
	MaxWordsLen = 280
)

var (
	ErrNameEmpty     = errors.New("name empty")
	ErrNameTooLong   = errors.New("name too long")
	ErrADNTooLong    = errors.New("adn too long")
	ErrWordsTooLong  = errors.New("words too long")
	ErrSecretEmpty   = errors.New("secret empty")
	ErrAccountLinked = errors.New("account already linked")
	ErrAccountEmpty  = errors.New("account empty")
)

type (
	SessionID     string
	ParticipantID string
	PeerHandle    string
)

// NoParticipant is returned where a lookup or line operation has nothing to report.
const NoParticipant ParticipantID = ""

// DeriveUnlockKey hashes a participant secret the same way the ledger does
// (Keccak-256 over the raw string, 0x-prefixed hex).
func DeriveUnlockKey(secret string) (string, error) {
	if secret == "" {
		return "", ErrSecretEmpty
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(secret))
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}

func validateWords(words string) error {
	if len(words) > MaxWordsLen {
		return ErrWordsTooLong
	}
	return nil
}
