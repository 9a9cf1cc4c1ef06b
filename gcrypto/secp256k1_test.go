package gcrypto_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/gcrypto/gcryptotest"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1PubKey_RoundTrip(t *testing.T) {
	t.Parallel()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := gcrypto.NewSecp256k1Signer(priv)

	b := signer.PubKey().PubKeyBytes()
	require.Len(t, b, gcrypto.Secp256k1PubKeySize)

	k, err := gcrypto.NewSecp256k1PubKey(b)
	require.NoError(t, err)
	require.True(t, signer.PubKey().Equal(k))

	k2, err := gcrypto.ParseSecp256k1PubKeyHex(k.String())
	require.NoError(t, err)
	require.Equal(t, k, k2)

	require.Equal(t, crypto.PubkeyToAddress(priv.PublicKey).Bytes(), k.Address())
}

func TestSecp256k1PubKey_Invalid(t *testing.T) {
	t.Parallel()

	_, err := gcrypto.NewSecp256k1PubKey(make([]byte, 32))
	require.ErrorContains(t, err, "must be 33 bytes")

	var k gcrypto.Secp256k1PubKey
	require.ErrorContains(t, k.Validate(), "invalid prefix")

	// Valid prefix, but X is larger than the field prime.
	k[0] = 0x02
	for i := 1; i < len(k); i++ {
		k[i] = 0xff
	}
	require.Error(t, k.Validate())
	require.Nil(t, k.Address())
}

func TestSecp256k1Signer_SignVerify(t *testing.T) {
	t.Parallel()

	signers := gcryptotest.DeterministicSecp256k1Signers(2)
	msg := []byte("hello")

	sig, err := signers[0].Sign(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sig, gcrypto.Secp256k1SignatureSize)

	require.True(t, signers[0].PubKey().Verify(msg, sig))
	require.True(t, signers[0].PubKey().Verify(msg, sig[:64]))
	require.False(t, signers[1].PubKey().Verify(msg, sig))
	require.False(t, signers[0].PubKey().Verify([]byte("goodbye"), sig))
	require.False(t, signers[0].PubKey().Verify(msg, sig[:10]))
}

func TestDeterministicSecp256k1Signers(t *testing.T) {
	t.Parallel()

	a := gcryptotest.DeterministicSecp256k1Signers(3)
	b := gcryptotest.DeterministicSecp256k1Signers(3)
	for i := range a {
		require.Equal(t, a[i].CompressedPubKey(), b[i].CompressedPubKey())
		require.NoError(t, a[i].CompressedPubKey().Validate())
	}
	require.NotEqual(t, a[0].CompressedPubKey(), a[1].CompressedPubKey())
}
