// Package bls wraps the Herumi BLS12-381 implementation behind the narrow
// secret-key/public-key/signature API the rest of the module needs. It does
// not attempt to expose every operation the underlying library offers, only
// what the signature batch verifier and key management use.
package bls

import (
	"fmt"
	"sync"

	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/pkg/errors"
)

const SecretKeyLength = 32
const PublicKeyLength = 48
const SignatureLength = 96

var initOnce sync.Once
var initErr error

func ensureInit() error {
	initOnce.Do(func() {
		initErr = bls.Init(bls.BLS12_381)
		if initErr != nil {
			return
		}
		initErr = bls.SetETHmode(bls.EthModeDraft07)
	})
	return initErr
}

// ErrZeroKey is returned when a secret key's bytes are all zero, which the
// BLS spec disallows as a valid key.
var ErrZeroKey = errors.New("received secret key is zero")

// SecretKey is a BLS12-381 private key.
type SecretKey struct {
	p bls.SecretKey
}

// PublicKey is a BLS12-381 public key.
type PublicKey struct {
	p bls.PublicKey
}

// Signature is a BLS12-381 signature.
type Signature struct {
	s bls.Sign
}

// RandKey generates a new random secret key.
func RandKey() (*SecretKey, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}
	var sec bls.SecretKey
	sec.SetByCSPRNG()
	return &SecretKey{p: sec}, nil
}

// SecretKeyFromBytes deserializes a secret key from its canonical encoding.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}
	if len(b) != SecretKeyLength {
		return nil, fmt.Errorf("secret key must be %d bytes", SecretKeyLength)
	}
	if isZero(b) {
		return nil, ErrZeroKey
	}
	var sec bls.SecretKey
	if err := sec.Deserialize(b); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal secret key")
	}
	return &SecretKey{p: sec}, nil
}

// PublicKeyFromBytes deserializes a public key from its compressed encoding.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}
	if len(b) != PublicKeyLength {
		return nil, fmt.Errorf("public key must be %d bytes", PublicKeyLength)
	}
	var pub bls.PublicKey
	if err := pub.Deserialize(b); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal public key")
	}
	return &PublicKey{p: pub}, nil
}

// SignatureFromBytes deserializes a signature from its compressed encoding.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}
	if len(b) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes", SignatureLength)
	}
	var s bls.Sign
	if err := s.Deserialize(b); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal signature")
	}
	return &Signature{s: s}, nil
}

// PublicKey derives the public key for this secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	pub := k.p.GetPublicKey()
	return &PublicKey{p: *pub}
}

// Sign signs msg, producing a signature over its raw bytes. Callers are
// responsible for hashing/domain-separating msg the way the consensus spec
// requires before calling this.
func (k *SecretKey) Sign(msg []byte) *Signature {
	sig := k.p.SignByte(msg)
	return &Signature{s: *sig}
}

// Marshal returns the secret key's canonical encoding.
func (k *SecretKey) Marshal() []byte {
	b := k.p.Serialize()
	if len(b) < SecretKeyLength {
		pad := make([]byte, SecretKeyLength-len(b))
		b = append(pad, b...)
	}
	return b
}

// Marshal returns the public key's compressed encoding.
func (p *PublicKey) Marshal() []byte { return p.p.Serialize() }

// Aggregate adds other's point into p in place, used to build an aggregate
// public key across the block's signers.
func (p *PublicKey) Aggregate(other *PublicKey) *PublicKey {
	p.p.Add(&other.p)
	return p
}

// Marshal returns the signature's compressed encoding.
func (s *Signature) Marshal() []byte { return s.s.Serialize() }

// Verify checks s against a single (pubkey, message) pair.
func (s *Signature) Verify(pub *PublicKey, msg []byte) bool {
	return s.s.VerifyByte(&pub.p, msg)
}

// Aggregate adds other's point into s in place.
func (s *Signature) Aggregate(other *Signature) *Signature {
	s.s.Add(&other.s)
	return s
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
