package codec

import (
	"encoding/base64"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPair(t *testing.T) {
	c := New(1)

	t.Run("generated pair matches", func(t *testing.T) {
		kp, err := c.GenerateKeyPair()
		require.NoError(t, err)
		require.True(t, IsDecimal(kp.PrivateKey))
		require.True(t, IsDecimal(kp.PublicKey))
		require.True(t, c.IsKeyPairMatch(kp.PrivateKey, kp.PublicKey))
	})

	t.Run("foreign public key does not match", func(t *testing.T) {
		a, err := c.GenerateKeyPair()
		require.NoError(t, err)
		b, err := c.GenerateKeyPair()
		require.NoError(t, err)
		require.False(t, c.IsKeyPairMatch(a.PrivateKey, b.PublicKey))
	})

	t.Run("base64 public key matches", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		priv := new(big.Int).SetBytes(crypto.FromECDSA(key)).String()
		pub := base64.StdEncoding.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)[1:])
		require.True(t, c.IsKeyPairMatch(priv, pub))
	})

	t.Run("garbage never matches", func(t *testing.T) {
		require.False(t, c.IsKeyPairMatch("abc", "123"))
		require.False(t, c.IsKeyPairMatch("0", "123"))
	})
}

func TestWeIdAddressMapping(t *testing.T) {
	c := New(101)

	kp, err := c.GenerateKeyPair()
	require.NoError(t, err)

	weId, err := c.WeIdFromPublicKey(kp.PublicKey)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(weId, "did:weid:101:0x"))

	address, err := c.AddressFromWeId(weId)
	require.NoError(t, err)
	require.Equal(t, weId, c.WeIdFromAddress(address))

	fromPriv, err := AddressFromPrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, address, fromPriv)

	t.Run("legacy form without chain id", func(t *testing.T) {
		got, err := c.AddressFromWeId("did:weid:" + address)
		require.NoError(t, err)
		require.Equal(t, address, got)
	})

	t.Run("invalid weids", func(t *testing.T) {
		for _, weId := range []string{"", "did:eth:0xabc", "did:weid:1:xyz", "did:weid:1:0x1234"} {
			_, err := c.AddressFromWeId(weId)
			assert.Error(t, err, weId)
		}
	})
}

func TestWeIdFromPublicKeyRejectsMalformedKeys(t *testing.T) {
	c := New(1)

	for _, pub := range []string{"", "not-a-key!", "12345", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.WeIdFromPublicKey(pub)
		assert.Error(t, err, pub)
	}
}

func TestNormalizePublicKey(t *testing.T) {
	c := New(1)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw := crypto.FromECDSAPub(&key.PublicKey)[1:]

	fromDecimal, err := c.NormalizePublicKey(new(big.Int).SetBytes(raw).String())
	require.NoError(t, err)
	fromBase64, err := c.NormalizePublicKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	require.Equal(t, fromDecimal, fromBase64)
	require.True(t, strings.HasPrefix(fromDecimal, "z"))

	t.Run("every point layout normalises alike", func(t *testing.T) {
		for name, b := range map[string][]byte{
			"uncompressed with prefix": crypto.FromECDSAPub(&key.PublicKey),
			"compressed":               crypto.CompressPubkey(&key.PublicKey),
		} {
			got, err := c.NormalizePublicKey(base64.StdEncoding.EncodeToString(b))
			require.NoError(t, err, name)
			assert.Equal(t, fromDecimal, got, name)
		}
	})

	t.Run("off-curve bytes", func(t *testing.T) {
		_, err := c.NormalizePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 64)))
		assert.NoError(t, err)

		_, err = c.NormalizePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 20)))
		assert.Error(t, err)
	})

	_, err = c.NormalizePublicKey("not base64 or digits")
	require.Error(t, err)
}

func TestDigestIsDeterministic(t *testing.T) {
	require.Equal(t, Digest("https://example.com"), Digest("https://example.com"))
	require.NotEqual(t, Digest("a"), Digest("b"))
	require.Len(t, Digest(""), 64)
}

func TestParsePrivateKey(t *testing.T) {
	_, err := ParsePrivateKey("0")
	require.Error(t, err)

	_, err = ParsePrivateKey("0x1234")
	require.Error(t, err)

	tooLarge := new(big.Int).Lsh(big.NewInt(1), 257).String()
	_, err = ParsePrivateKey(tooLarge)
	require.Error(t, err)

	key, err := ParsePrivateKey("12345678901234567890")
	require.NoError(t, err)
	require.NotNil(t, key)
}
