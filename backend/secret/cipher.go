// Package secret encrypts data at rest with a tink AEAD keyset kept in the
// OS keyring.
package secret

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/furisto/toolgate/shared/keyring"
	"github.com/tink-crypto/tink-go/aead"
	"github.com/tink-crypto/tink-go/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/keyset"
	"github.com/tink-crypto/tink-go/tink"
)

// EncryptionKeySecret is the keyring entry holding the storage keyset.
const EncryptionKeySecret = "storage:encryption_key"

type Client struct {
	aead tink.AEAD
}

func NewClient(handle *keyset.Handle) (*Client, error) {
	primitive, err := aead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create aead primitive: %w", err)
	}
	return &Client{aead: primitive}, nil
}

// Encrypt seals plaintext. associatedData binds the ciphertext to its owner
// and must be passed unchanged to Decrypt.
func (c *Client) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	ciphertext, err := c.aead.Encrypt(plaintext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	return ciphertext, nil
}

func (c *Client) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	plaintext, err := c.aead.Decrypt(ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func GenerateKeyset() (*keyset.Handle, error) {
	handle, err := keyset.NewHandle(aead.AES256GCMKeyTemplate())
	if err != nil {
		return nil, fmt.Errorf("failed to generate keyset: %w", err)
	}
	return handle, nil
}

func KeysetToJSON(handle *keyset.Handle) (string, error) {
	var buf bytes.Buffer
	if err := insecurecleartextkeyset.Write(handle, keyset.NewJSONWriter(&buf)); err != nil {
		return "", fmt.Errorf("failed to serialize keyset: %w", err)
	}
	return buf.String(), nil
}

func KeysetFromJSON(content string) (*keyset.Handle, error) {
	handle, err := insecurecleartextkeyset.Read(keyset.NewJSONReader(bytes.NewBufferString(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse keyset: %w", err)
	}
	return handle, nil
}

// LoadOrCreateClient loads the storage keyset from the keyring and creates
// it on first use.
func LoadOrCreateClient(provider keyring.Provider) (*Client, error) {
	content, err := provider.Get(EncryptionKeySecret)
	if err == nil {
		slog.Debug("loading encryption key")
		handle, err := KeysetFromJSON(content)
		if err != nil {
			return nil, err
		}
		return NewClient(handle)
	}
	if !errors.Is(err, &keyring.ErrSecretNotFound{}) {
		return nil, fmt.Errorf("failed to read encryption key: %w", err)
	}

	slog.Debug("generating new encryption key")
	handle, err := GenerateKeyset()
	if err != nil {
		return nil, err
	}
	content, err = KeysetToJSON(handle)
	if err != nil {
		return nil, err
	}
	if err := provider.Set(EncryptionKeySecret, content); err != nil {
		return nil, fmt.Errorf("failed to store encryption key: %w", err)
	}
	return NewClient(handle)
}
