package signature

import (
	"fmt"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Payload is one of exactly two variants: *DirectSignature or *NestedSignature.
// Consumers switch over both and treat anything else as an error.
type Payload interface {
	isPayload()
}

// DirectSignature is a recoverable secp256k1 signature. V is stored as 27 or 28;
// the method offset is applied only on the wire.
type DirectSignature struct {
	Signature [65]byte
	Method    Method
}

// NestedSignature is a nested account's approval. Signatures holds its aggregated
// blob; Set holds contributions still waiting to be aggregated. Exactly one is used:
// the aggregator turns a pending Set into Signatures.
type NestedSignature struct {
	Signatures []byte
	Set        *Set
}

func (*DirectSignature) isPayload() {}
func (*NestedSignature) isPayload() {}

// Contribution is one signer's proof of approval
type Contribution struct {
	Signer  common.Address
	Payload Payload
}

// NewDirectSignature normalizes a 65-byte r||s||v signature; v may be 0/1 or 27/28
func NewDirectSignature(sig []byte, method Method) (*DirectSignature, error) {
	if len(sig) != RecordLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrMalformedSignature, RecordLength, len(sig))
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unsupported signing %s", types.ErrMalformedSignature, method)
	}

	ds := &DirectSignature{Method: method}
	copy(ds.Signature[:], sig)

	switch v := ds.Signature[64]; v {
	case 0, 1:
		ds.Signature[64] = v + 27
	case 27, 28:
	default:
		return nil, fmt.Errorf("%w: unsupported recovery byte %d", types.ErrMalformedSignature, v)
	}
	return ds, nil
}

// Recover returns the address whose key produced the signature over digest
func (d *DirectSignature) Recover(digest types.Digest) (common.Address, error) {
	sig := make([]byte, RecordLength)
	copy(sig, d.Signature[:])
	sig[64] -= 27

	pub, err := crypto.SigToPub(d.Method.SigningHash(digest).Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to recover signer: %v", types.ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// NewDirectContribution recovers the signer from digest so the contribution is keyed
// by the address that really signed.
func NewDirectContribution(sig *DirectSignature, digest types.Digest) (*Contribution, error) {
	signer, err := sig.Recover(digest)
	if err != nil {
		return nil, err
	}
	return &Contribution{Signer: signer, Payload: sig}, nil
}

// NewNestedContribution wraps an already aggregated nested blob
func NewNestedContribution(signer common.Address, signatures []byte) *Contribution {
	return &Contribution{Signer: signer, Payload: &NestedSignature{Signatures: signatures}}
}

// NewPendingNestedContribution wraps a nested account's contributions for recursive aggregation
func NewPendingNestedContribution(signer common.Address, set *Set) *Contribution {
	return &Contribution{Signer: signer, Payload: &NestedSignature{Set: set}}
}
