package session

import (
	"context"
	"crypto/sha256"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gkms "github.com/Laisky/go-utils/v6/crypto/kms"
	"github.com/Laisky/go-utils/v6/crypto/kms/mem"
	"github.com/google/uuid"
)

// Protector seals stored credentials with an in-memory KMS.
// New encryptions use the KEK with the largest id; older ids stay readable.
type Protector struct {
	kms gkms.Interface
}

// NewProtector builds a protector from KEK id to raw secret.
// Every secret must be longer than 16 characters.
func NewProtector(keks map[uint16]string) (*Protector, error) {
	if len(keks) == 0 {
		return nil, errors.New("at least one kek is required")
	}

	hashed := make(map[uint16][]byte, len(keks))
	for kekID, raw := range keks {
		secret := strings.TrimSpace(raw)
		if len(secret) <= 16 {
			return nil, errors.Errorf("kek %d must be longer than 16 characters", kekID)
		}

		sum := sha256.Sum256([]byte(secret))
		hashed[kekID] = sum[:]
	}

	kmsClient, err := mem.New(hashed)
	if err != nil {
		return nil, errors.Wrap(err, "init memory kms")
	}

	return &Protector{kms: kmsClient}, nil
}

// NewEphemeralProtector builds a protector on a random KEK.
// Anything it seals is unreadable after the process exits.
func NewEphemeralProtector() (*Protector, error) {
	return NewProtector(map[uint16]string{1: uuid.NewString() + uuid.NewString()})
}

// Seal encrypts plaintext bound to aad.
func (p *Protector) Seal(ctx context.Context, plaintext, aad []byte) (string, error) {
	encrypted, err := p.kms.Encrypt(ctx, plaintext, aad)
	if err != nil {
		return "", errors.Wrap(err, "encrypt")
	}

	payload, err := encrypted.MarshalToString()
	if err != nil {
		return "", errors.Wrap(err, "marshal encrypted data")
	}
	return payload, nil
}

// Open decrypts a payload produced by Seal with the same aad.
func (p *Protector) Open(ctx context.Context, payload string, aad []byte) ([]byte, error) {
	var encrypted gkms.EncryptedData
	if err := encrypted.UnmarshalFromString(payload); err != nil {
		return nil, errors.Wrap(err, "unmarshal encrypted data")
	}

	plaintext, err := p.kms.Decrypt(ctx, &encrypted, aad)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt")
	}
	return plaintext, nil
}
