package bip32

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ExtendedKey wraps a BIP-32 extended key.
type ExtendedKey interface {
	// String returns the Base58 form (xprv... / xpub...)
	String() string

	// ECPubKey returns the underlying EC public key
	ECPubKey() (*btcec.PublicKey, error)
	// Derive derives the non-hardened child at index
	Derive(index uint32) (ExtendedKey, error)
	// IsPrivate reports whether the key carries private material
	IsPrivate() bool
	// Neuter returns the matching extended public key
	Neuter() (ExtendedKey, error)
}

// HDWallet is a hierarchical deterministic key tree rooted at a master key.
type HDWallet interface {
	// MasterKey returns the root extended key
	MasterKey() ExtendedKey
	// DerivePath derives the key at a path such as "m/44'/60'/0'/0/0"
	DerivePath(path string) (ExtendedKey, error)
}

var (
	ErrInvalidSeed = errors.New("invalid seed")
	ErrInvalidPath = errors.New("invalid derivation path")
)
