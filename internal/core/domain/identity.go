package domain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"
)

// Session identifies the local principal an operation runs on behalf of.
// It is passed explicitly to every identity-scoped call.
type Session struct {
	IdentityID string `json:"identity_id"`
}

// NewSession creates a Session for the given identity.
func NewSession(identityID string) Session {
	return Session{IdentityID: identityID}
}

// Valid reports whether the session names an identity.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.IdentityID) != ""
}

// Identity is the public half of a local keypair. The private key never
// leaves the identity store.
type Identity struct {
	IdentityID string            `json:"identity_id"`
	PublicKey  ed25519.PublicKey `json:"-"`
	Address    string            `json:"address"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PublicKeyHex returns the lowercase hex form of the public key.
func (i *Identity) PublicKeyHex() string {
	return hex.EncodeToString(i.PublicKey)
}

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DeriveAddress builds the human-facing routing handle for a public key:
// base32 of the first 10 bytes of SHA-256(pubkey), lowercased, at domain.
func DeriveAddress(pub ed25519.PublicKey, domain string) string {
	sum := sha256.Sum256(pub)
	handle := strings.ToLower(addressEncoding.EncodeToString(sum[:10]))
	if domain == "" {
		domain = DefaultAddressDomain
	}
	return handle + "@" + domain
}

// StoredKey is the persisted form of a keypair. SealedPrivateKey is the
// AES-GCM ciphertext of the Ed25519 seed; the plaintext is never stored.
type StoredKey struct {
	IdentityID       string    `json:"identity_id"`
	PublicKey        []byte    `json:"public_key"`
	SealedPrivateKey string    `json:"sealed_private_key"`
	CreatedAt        time.Time `json:"created_at"`
}

// DefaultAddressDomain is used when no address domain is configured.
const DefaultAddressDomain = "offline"
