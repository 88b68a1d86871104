package service

import (
	"context"
	"testing"

	"member-core/pkg/bip32"
	"member-core/pkg/config"
	"member-core/pkg/errno"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccountKey(t *testing.T) bip32.ExtendedKey {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	wallet, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	account, err := wallet.DerivePath("m/44'/60'/0'")
	require.NoError(t, err)
	xpub, err := account.Neuter()
	require.NoError(t, err)
	return xpub
}

func TestNewPaymentServiceRejectsPrivateKey(t *testing.T) {
	seed := make([]byte, 32)
	wallet, err := bip32.NewMasterKeyFromSeed(seed[:16], &chaincfg.MainNetParams)
	require.NoError(t, err)

	_, err = NewPaymentService(nil, nil, wallet.MasterKey(), &config.Config{})
	assert.Error(t, err)
}

func TestDeriveAddressIsStable(t *testing.T) {
	svc, err := NewPaymentService(nil, nil, testAccountKey(t), &config.Config{})
	require.NoError(t, err)

	a1, err := svc.deriveAddress(5)
	require.NoError(t, err)
	a2, err := svc.deriveAddress(5)
	require.NoError(t, err)
	b, err := svc.deriveAddress(6)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Regexp(t, "^0x[0-9a-fA-F]{40}$", a1)
}

func TestGetPaymentStatusOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner", nil)
	other := createTestUser(t, db, "other", nil)
	intent := createConfirmedIntent(t, db, owner.ID, 1)

	svc, err := NewPaymentService(db, nil, testAccountKey(t), &config.Config{})
	require.NoError(t, err)

	snapshot, err := svc.GetPaymentStatus(context.Background(), intent.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, snapshot.PaymentID)
	assert.Equal(t, "confirmed", snapshot.Status)
	assert.Equal(t, intent.DepositAddress, snapshot.DepositAddress)

	_, err = svc.GetPaymentStatus(context.Background(), intent.ID, other.ID)
	assert.ErrorIs(t, err, errno.ErrPaymentForbidden)

	_, err = svc.GetPaymentStatus(context.Background(), intent.ID+999, owner.ID)
	assert.ErrorIs(t, err, errno.ErrPaymentNotFound)
}
