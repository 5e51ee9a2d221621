package beacon

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

var ErrPubkeyPrefix = errors.New("public key must be 0x-prefixed")

// ParsePubkey decodes a 0x-prefixed hex encoded BLS public key.
func ParsePubkey(s string) (phase0.BLSPubKey, error) {
	var pubkey phase0.BLSPubKey
	if !strings.HasPrefix(s, "0x") {
		return pubkey, ErrPubkeyPrefix
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return pubkey, fmt.Errorf("invalid public key: %w", err)
	}
	if len(b) != len(pubkey) {
		return pubkey, fmt.Errorf("invalid public key length %d", len(b))
	}
	copy(pubkey[:], b)
	return pubkey, nil
}

// PubkeyString returns the lowercase 0x-prefixed encoding used as metric label.
func PubkeyString(pubkey phase0.BLSPubKey) string {
	return "0x" + hex.EncodeToString(pubkey[:])
}
