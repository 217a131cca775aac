package qr_test

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	qr "ms-camp-tickets/internal/tickets/qr_generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePass() qr.Pass {
	return qr.Pass{
		PaymentID: "pi_123",
		Email:     "camper@example.com",
		Tickets:   []string{"Camp 2025"},
		IssuedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateEncryptedQRIsPNG(t *testing.T) {
	png, err := qr.NewQRGenerator("test-secret-key").GenerateEncryptedQR(samplePass())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestPassRoundTrip(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	token, err := gen.EncryptPass(samplePass())
	require.NoError(t, err)
	assert.NotContains(t, token, "camper@example.com")

	pass, err := gen.DecryptPass(token)
	require.NoError(t, err)
	assert.Equal(t, samplePass(), *pass)
}

func TestSamePassEncryptsDifferently(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	a, err := gen.EncryptPass(samplePass())
	require.NoError(t, err)
	b, err := gen.EncryptPass(samplePass())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptWithWrongSecretFails(t *testing.T) {
	token, err := qr.NewQRGenerator("one").EncryptPass(samplePass())
	require.NoError(t, err)

	_, err = qr.NewQRGenerator("two").DecryptPass(token)
	assert.ErrorIs(t, err, qr.ErrInvalidPass)

	_, err = qr.NewQRGenerator("one").DecryptPass("not base64 !!")
	assert.ErrorIs(t, err, qr.ErrInvalidPass)
}

func TestDataURI(t *testing.T) {
	uri, err := qr.NewQRGenerator("k").DataURI(samplePass())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	_, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	assert.NoError(t, err)
}
