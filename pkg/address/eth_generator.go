package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ETHGenerator turns secp256k1 public keys into EVM deposit addresses.
type ETHGenerator struct{}

func NewETHGenerator() *ETHGenerator {
	return &ETHGenerator{}
}

// PubKeyToAddress converts an uncompressed public key (65 bytes, 0x04 prefix)
// into an EIP-55 checksummed address.
func (g *ETHGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	if len(pubKeyBytes) == 65 && pubKeyBytes[0] == 0x04 {
		pubKeyBytes = pubKeyBytes[1:]
	}
	if len(pubKeyBytes) != 64 {
		return "", fmt.Errorf("unexpected public key length %d", len(pubKeyBytes))
	}

	hash := keccak256(pubKeyBytes)
	addressBytes := hash[12:]

	addressHex := hex.EncodeToString(addressBytes)
	return "0x" + toChecksumAddress(addressHex), nil
}

func keccak256(data []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return hash.Sum(nil)
}

// toChecksumAddress applies the EIP-55 mixed-case checksum.
func toChecksumAddress(address string) string {
	address = strings.ToLower(address)
	hash := keccak256([]byte(address))
	hexHash := hex.EncodeToString(hash)

	var sb strings.Builder
	for i := 0; i < len(address); i++ {
		char := address[i]
		if hexCharToInt(hexHash[i]) >= 8 {
			sb.WriteString(strings.ToUpper(string(char)))
		} else {
			sb.WriteByte(char)
		}
	}
	return sb.String()
}

func hexCharToInt(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 10
	}
	return 0
}
