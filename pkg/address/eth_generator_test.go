package address

import (
	"encoding/hex"
	"testing"
)

func TestPubKeyToAddress(t *testing.T) {
	// The secp256k1 generator point, i.e. the public key of private key 1.
	// Its address is a well-known fixture.
	pubKeyHex := "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		t.Fatalf("decoding fixture failed: %v", err)
	}

	gen := NewETHGenerator()
	addr, err := gen.PubKeyToAddress(pubKey)
	if err != nil {
		t.Fatalf("PubKeyToAddress failed: %v", err)
	}

	want := "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	if addr != want {
		t.Errorf("address mismatch\nwant: %s\ngot:  %s", want, addr)
	}
}

func TestPubKeyToAddressRejectsBadLength(t *testing.T) {
	gen := NewETHGenerator()

	if _, err := gen.PubKeyToAddress(make([]byte, 33)); err == nil {
		t.Error("expected error for compressed key input")
	}
	if _, err := gen.PubKeyToAddress(nil); err == nil {
		t.Error("expected error for empty input")
	}
}
