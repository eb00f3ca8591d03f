package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	uuid "github.com/google/uuid"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrNoSigningKey     = errors.New("no private key found for signing")
	errUnparseableBlock = errors.New("unsupported PEM key block")
)

const ephemeralKeyBits = 2048

// KeyProvider supplies the RSA material used to sign and verify tokens.
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey, err error)
	VerificationKey(kid string) (*rsa.PublicKey, error)
}

// StaticKeyProvider holds a fixed set of keys, indexed by kid.
type StaticKeyProvider struct {
	signingKID string
	signingKey *rsa.PrivateKey
	keys       map[string]*rsa.PublicKey
}

// LoadKeyDirectory reads every PEM file in dir. The kid of a key is its file
// name without extension; the first private key (in name order) signs.
func LoadKeyDirectory(dir string) (*StaticKeyProvider, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &StaticKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}
		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if err := provider.addPEM(kid, data); err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
	}

	if provider.signingKey == nil {
		return nil, ErrNoSigningKey
	}
	return provider, nil
}

// NewEphemeralKeyProvider generates an in-memory key pair. Tokens signed with it
// do not survive a restart.
func NewEphemeralKeyProvider() (*StaticKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return NewStaticKeyProvider("ephemeral-"+uuid.NewString()[:8], key), nil
}

// NewStaticKeyProvider wraps a single signing key.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{
		signingKID: kid,
		signingKey: key,
		keys:       map[string]*rsa.PublicKey{kid: &key.PublicKey},
	}
}

func (p *StaticKeyProvider) addPEM(kid string, data []byte) error {
	block, _ := pem.Decode(data)
	if block == nil {
		return errors.New("no PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		p.addPrivate(kid, key)
		return nil
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if key, ok := parsed.(*rsa.PrivateKey); ok {
			p.addPrivate(kid, key)
			return nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		p.keys[kid] = key
		return nil
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if key, ok := parsed.(*rsa.PublicKey); ok {
			p.keys[kid] = key
			return nil
		}
	}
	return errUnparseableBlock
}

func (p *StaticKeyProvider) addPrivate(kid string, key *rsa.PrivateKey) {
	if p.signingKey == nil {
		p.signingKID = kid
		p.signingKey = key
	}
	p.keys[kid] = &key.PublicKey
}

// SigningKey returns the active signing key and its kid.
func (p *StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return "", nil, ErrNoSigningKey
	}
	return p.signingKID, p.signingKey, nil
}

// VerificationKey returns the public key registered for kid.
func (p *StaticKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// NewKeyProvider loads keys from dir. Outside production a missing or empty
// directory falls back to an ephemeral key.
func NewKeyProvider(env, dir string) (KeyProvider, error) {
	provider, err := LoadKeyDirectory(dir)
	if err == nil {
		return provider, nil
	}
	if env == "production" {
		return nil, err
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrNoSigningKey) {
		return NewEphemeralKeyProvider()
	}
	return nil, err
}
