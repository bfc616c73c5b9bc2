package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	signature := Sign("my-secret-key", []byte(`{"type":"attendance.committed"}`))
	assert.NotEmpty(t, signature)
	assert.Contains(t, signature, "sha256=")

	isValid := Verify("my-secret-key", []byte(`{"type":"attendance.committed"}`), signature)
	assert.True(t, isValid, "signature should be valid")
}

func TestVerify(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"test":"data"}`)
	validSignature := Sign(secret, payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			payload:   payload,
			signature: validSignature,
			expected:  true,
		},
		{
			name:      "invalid signature",
			secret:    secret,
			payload:   payload,
			signature: "sha256=invalid",
			expected:  false,
		},
		{
			name:      "wrong secret",
			secret:    "wrong-secret",
			payload:   payload,
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "modified payload",
			secret:    secret,
			payload:   []byte(`{"test":"modified"}`),
			signature: validSignature,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(tt.secret, tt.payload, tt.signature)
			assert.Equal(t, tt.expected, result)
		})
	}
}
