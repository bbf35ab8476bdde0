package httpsig

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientKeyOnce = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
	serverKeyOnce = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
)

func clientKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := clientKeyOnce()
	require.NoError(t, err)

	return key
}

func serverKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := serverKeyOnce()
	require.NoError(t, err)

	return key
}

func TestRSASHA256(t *testing.T) {
	key := clientKey(t)

	t.Run("sign and verify round trip", func(t *testing.T) {
		signer, err := NewRSASHA256Signer("rsa-key", key)
		require.NoError(t, err)

		verifier, err := NewRSASHA256Verifier("rsa-key", &key.PublicKey)
		require.NoError(t, err)

		message := []byte("rsa test")
		sig, err := signer.Sign(message)
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify(message, sig))
		assert.Equal(t, AlgorithmRSASHA256, signer.Algorithm())
		assert.Equal(t, AlgorithmRSASHA256, verifier.Algorithm())
		assert.Equal(t, "rsa-key", signer.KeyID())
		assert.Equal(t, "rsa-key", verifier.KeyID())
	})

	t.Run("signature is deterministic", func(t *testing.T) {
		signer, err := NewRSASHA256Signer("k", key)
		require.NoError(t, err)

		a, err := signer.Sign([]byte("same"))
		require.NoError(t, err)

		b, err := signer.Sign([]byte("same"))
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("wrong message fails verification", func(t *testing.T) {
		signer, err := NewRSASHA256Signer("k", key)
		require.NoError(t, err)

		verifier, err := NewRSASHA256Verifier("k", &key.PublicKey)
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("original"))
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify([]byte("tampered"), sig), ErrSignatureInvalid)
	})

	t.Run("wrong key fails verification", func(t *testing.T) {
		signer, err := NewRSASHA256Signer("k", key)
		require.NoError(t, err)

		verifier, err := NewRSASHA256Verifier("k", &serverKey(t).PublicKey)
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify([]byte("message"), sig), ErrSignatureInvalid)
	})

	t.Run("nil keys", func(t *testing.T) {
		_, err := NewRSASHA256Signer("k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewRSASHA256Verifier("k", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("key too small", func(t *testing.T) {
		small, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)

		_, err = NewRSASHA256Signer("k", small)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewRSASHA256Verifier("k", &small.PublicKey)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestSignString(t *testing.T) {
	key := clientKey(t)

	signer, err := NewRSASHA256Signer("k", key)
	require.NoError(t, err)

	verifier, err := NewRSASHA256Verifier("k", &key.PublicKey)
	require.NoError(t, err)

	s := "(request-target): get /greetings/single\ndate: Tue, 01 Jan 2019 00:00:00 GMT"

	t.Run("nil signer", func(t *testing.T) {
		_, err := SignString(nil, s)
		assert.ErrorIs(t, err, ErrNoSigner)
	})

	t.Run("round trip", func(t *testing.T) {
		sig, err := SignString(signer, s)
		require.NoError(t, err)

		_, err = base64.StdEncoding.DecodeString(sig)
		require.NoError(t, err)

		ok, err := VerifyString(verifier, s, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("every single byte mutation fails", func(t *testing.T) {
		sig, err := SignString(signer, s)
		require.NoError(t, err)

		for i := range len(s) {
			mutated := []byte(s)
			mutated[i] ^= 0x01

			ok, err := VerifyString(verifier, string(mutated), sig)
			require.NoError(t, err)
			assert.False(t, ok, "mutation at byte %d verified", i)
		}
	})

	t.Run("invalid base64 is an error", func(t *testing.T) {
		ok, err := VerifyString(verifier, s, "not base64!!")
		assert.ErrorIs(t, err, ErrMalformedSignature)
		assert.False(t, ok)
	})

	t.Run("valid base64 of garbage is false", func(t *testing.T) {
		ok, err := VerifyString(verifier, s, base64.StdEncoding.EncodeToString([]byte("garbage")))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent use", func(t *testing.T) {
		var wg sync.WaitGroup

		for range 8 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				sig, err := SignString(signer, s)
				assert.NoError(t, err)

				ok, err := VerifyString(verifier, s, sig)
				assert.NoError(t, err)
				assert.True(t, ok)
			}()
		}

		wg.Wait()
	})
}
