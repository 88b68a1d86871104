package bip32

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Keychain implements ExtendedKey on top of hdkeychain.ExtendedKey.
type Keychain struct {
	key     *hdkeychain.ExtendedKey
	network *chaincfg.Params
}

func (k *Keychain) String() string {
	return k.key.String()
}

func (k *Keychain) ECPubKey() (*btcec.PublicKey, error) {
	return k.key.ECPubKey()
}

func (k *Keychain) Derive(index uint32) (ExtendedKey, error) {
	childKey, err := k.key.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("child derivation failed: %w", err)
	}
	return &Keychain{key: childKey, network: k.network}, nil
}

func (k *Keychain) IsPrivate() bool {
	return k.key.IsPrivate()
}

func (k *Keychain) Neuter() (ExtendedKey, error) {
	neuterKey, err := k.key.Neuter()
	if err != nil {
		return nil, fmt.Errorf("neuter failed: %w", err)
	}
	return &Keychain{key: neuterKey, network: k.network}, nil
}

// ParseKey decodes a serialized extended key (xprv/xpub).
// Only non-hardened derivation is possible from an xpub, which is exactly
// what deposit-address derivation needs.
func ParseKey(encoded string, network *chaincfg.Params) (ExtendedKey, error) {
	if network == nil {
		network = &chaincfg.MainNetParams
	}
	key, err := hdkeychain.NewKeyFromString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extended key: %w", err)
	}
	return &Keychain{key: key, network: network}, nil
}

// Wallet implements HDWallet.
type Wallet struct {
	masterKey *Keychain
	network   *chaincfg.Params
}

// NewMasterKeyFromSeed builds the master key from a BIP-39 seed.
func NewMasterKeyFromSeed(seed []byte, network *chaincfg.Params) (*Wallet, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeed
	}

	if network == nil {
		network = &chaincfg.MainNetParams
	}

	masterKey, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	return &Wallet{
		masterKey: &Keychain{key: masterKey, network: network},
		network:   network,
	}, nil
}

func (w *Wallet) MasterKey() ExtendedKey {
	return w.masterKey
}

// DerivePath parses a path and derives the key at it.
// Accepts "m/44'/60'/0'/0/0" and the "h" hardened marker.
func (w *Wallet) DerivePath(path string) (ExtendedKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return w.masterKey, nil
	}

	if strings.HasPrefix(path, "m/") {
		path = path[2:]
	}

	segments := strings.Split(path, "/")
	currentKey := w.masterKey

	for _, segment := range segments {
		isHardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			isHardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", segment, err)
		}
		index := uint32(val)

		if isHardened {
			index += hdkeychain.HardenedKeyStart
		}

		nextKey, err := currentKey.Derive(index)
		if err != nil {
			return nil, err
		}

		if k, ok := nextKey.(*Keychain); ok {
			currentKey = k
		} else {
			return nil, fmt.Errorf("internal error: unexpected key type")
		}
	}

	return currentKey, nil
}
