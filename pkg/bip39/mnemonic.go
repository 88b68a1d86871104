package bip39

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicService wraps BIP-39 mnemonic handling.
type MnemonicService struct{}

func NewMnemonicService() *MnemonicService {
	return &MnemonicService{}
}

// GenerateMnemonic creates a new random mnemonic.
// bitSize is the entropy size, usually 128 (12 words) or 256 (24 words).
func (s *MnemonicService) GenerateMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic reports whether the mnemonic is well-formed.
func (s *MnemonicService) ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// MnemonicToSeed converts a mnemonic into a BIP-39 seed.
// password is the optional passphrase; pass "" when unused.
func (s *MnemonicService) MnemonicToSeed(mnemonic string, password string) []byte {
	return bip39.NewSeed(mnemonic, password)
}
