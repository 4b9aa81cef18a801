package tor

import (
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/imgshare/internal/model"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the ".onion" suffix.
	OnionV3Length = 56

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// onionV3Pattern matches v3 onion addresses (56 base32 characters + .onion).
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// onionV2Pattern matches deprecated v2 onion addresses.
var onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)

// checksumPrefix is the prefix used in v3 onion address checksum calculation.
var checksumPrefix = []byte(".onion checksum")

// Onion address errors. Both wrap model.ErrResolution: a target whose host
// is not a usable onion address is skipped, not retried.
var (
	// ErrInvalidOnionAddress is returned when a host ends in .onion but is
	// not a valid v3 address.
	ErrInvalidOnionAddress = fmt.Errorf("%w: invalid onion address", model.ErrResolution)

	// ErrV2AddressDeprecated is returned for v2 addresses, which stopped
	// working on the Tor network in October 2021.
	ErrV2AddressDeprecated = fmt.Errorf("%w: v2 onion addresses are no longer reachable", model.ErrResolution)
)

// IsValidV3Address checks if the given address is a valid v3 onion address.
// It performs both format validation and checksum verification.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// 32 bytes ed25519 public key, 2 bytes checksum, 1 byte version.
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// CheckOnionHost validates the service part of an onion host. Subdomains are
// allowed ("www.<address>.onion"); only the last two labels are checked.
// Non-onion hosts are always accepted.
func CheckOnionHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if !strings.HasSuffix(host, OnionSuffix) {
		return nil
	}

	labels := strings.Split(host, ".")
	service := strings.Join(labels[max(0, len(labels)-2):], ".")

	if IsValidV3Address(service) {
		return nil
	}
	if onionV2Pattern.MatchString(service) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}
