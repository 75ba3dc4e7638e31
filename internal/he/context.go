//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package he wraps the BFV leveled homomorphic encryption scheme
// (github.com/tuneinsight/lattigo/v4/bfv) with the narrow slice of
// operations the protocol needs: packing a bit vector into plaintext
// slots, encrypting under the Receiver's public key, homomorphically
// selecting a single slot with a plaintext-multiplication mask,
// homomorphic addition (ciphertext+ciphertext and ciphertext+
// plaintext), and decrypting with the Receiver's secret key. Nothing
// outside this package touches the bfv or rlwe APIs directly.
package he

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// Context holds the scheme parameters and the (public) encoder. A
// Context is shared by both parties; it carries no secret material.
type Context struct {
	params  bfv.Parameters
	encoder bfv.Encoder
}

// NewContext builds the BFV parameter set for a given slot count and
// plaintext modulus. slots is rounded up to the ring degree the
// parameter literal provides; callers should pack as many values
// per ciphertext as Slots() reports to amortize ciphertext overhead.
func NewContext(slots int, plaintextModulus uint64) (*Context, error) {
	logN := 13
	for (1 << logN) < slots {
		logN++
	}
	lit := bfv.ParametersLiteral{
		LogN: logN,
		LogQ: []int{55, 55, 55},
		LogP: []int{55},
		T:    plaintextModulus,
	}
	params, err := bfv.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("he: parameter setup: %w", err)
	}
	return &Context{
		params:  params,
		encoder: bfv.NewEncoder(params),
	}, nil
}

// Slots reports how many plaintext slots a single ciphertext carries
// under this Context.
func (c *Context) Slots() int {
	return c.params.N()
}

// PlaintextModulus reports the configured plaintext modulus, t.
func (c *Context) PlaintextModulus() uint64 {
	return c.params.T()
}

// KeyPair is the Receiver's BFV key material. Secret never crosses
// the wire; only Public is sent to the Sender during the offline
// phase.
type KeyPair struct {
	Public *rlwe.PublicKey
	Secret *rlwe.SecretKey
}

// GenerateKeyPair runs BFV key generation. It is run once by the
// Receiver at the start of a session. No relinearization key is
// generated: every multiplication the protocol performs is
// ciphertext-by-plaintext (SelectSlot's unit-vector mask), which never
// grows the ciphertext degree, so there is nothing to relinearize.
func (c *Context) GenerateKeyPair() *KeyPair {
	kg := bfv.NewKeyGenerator(c.params)
	sk, pk := kg.GenKeyPair()
	return &KeyPair{Public: pk, Secret: sk}
}

// Encryptor encrypts under a fixed public key. The Sender holds one
// built from the Receiver's public key; the Receiver never needs one
// of its own since it only decrypts.
type Encryptor struct {
	ctx *Context
	enc bfv.Encryptor
}

// NewEncryptor binds a public key to this Context.
func (c *Context) NewEncryptor(pk *rlwe.PublicKey) *Encryptor {
	return &Encryptor{ctx: c, enc: bfv.NewEncryptor(c.params, pk)}
}

// EncryptBits packs bits (one byte per slot, nonzero meaning 1) into
// an additive-domain plaintext and encrypts it. Slots beyond
// len(bits) are zero-filled.
func (e *Encryptor) EncryptBits(bits []byte) (*rlwe.Ciphertext, error) {
	if len(bits) > e.ctx.Slots() {
		return nil, fmt.Errorf("he: %d bits exceed %d slots", len(bits), e.ctx.Slots())
	}
	vals := make([]uint64, e.ctx.Slots())
	for i, b := range bits {
		if b != 0 {
			vals[i] = 1
		}
	}
	pt := bfv.NewPlaintext(e.ctx.params)
	e.ctx.encoder.EncodeUint(vals, pt)
	ct := bfv.NewCiphertext(e.ctx.params, 1)
	e.enc.Encrypt(pt, ct)
	return ct, nil
}

// EncryptUint encrypts a single scalar broadcast into every slot,
// the form package query uses for each block's differing-bit count.
func (e *Encryptor) EncryptUint(v uint64) *rlwe.Ciphertext {
	vals := make([]uint64, e.ctx.Slots())
	for i := range vals {
		vals[i] = v
	}
	pt := bfv.NewPlaintext(e.ctx.params)
	e.ctx.encoder.EncodeUint(vals, pt)
	ct := bfv.NewCiphertext(e.ctx.params, 1)
	e.enc.Encrypt(pt, ct)
	return ct
}

// Decryptor decrypts under the Receiver's secret key.
type Decryptor struct {
	ctx *Context
	dec bfv.Decryptor
}

// NewDecryptor binds a secret key to this Context. Only the Receiver
// should ever call this.
func (c *Context) NewDecryptor(sk *rlwe.SecretKey) *Decryptor {
	return &Decryptor{ctx: c, dec: bfv.NewDecryptor(c.params, sk)}
}

// DecryptUint decrypts ct and returns every slot.
func (d *Decryptor) DecryptUint(ct *rlwe.Ciphertext) []uint64 {
	pt := bfv.NewPlaintext(d.ctx.params)
	d.dec.Decrypt(ct, pt)
	out := make([]uint64, d.ctx.Slots())
	d.ctx.encoder.DecodeUint(pt, out)
	return out
}

// DecryptSlot decrypts ct and returns only slot i.
func (d *Decryptor) DecryptSlot(ct *rlwe.Ciphertext, i int) uint64 {
	return d.DecryptUint(ct)[i]
}

// Evaluator performs homomorphic operations.
type Evaluator struct {
	ctx     *Context
	eval    bfv.Evaluator
	encoder bfv.Encoder
}

// NewEvaluator builds an Evaluator. rlk is always nil in this
// protocol: every multiplication SelectSlot performs is
// ciphertext-by-plaintext, which lattigo's generic Mul dispatches
// without growing the ciphertext degree, so there is nothing to
// relinearize. The parameter stays so a caller could supply one if a
// future extension ever needed a ciphertext-by-ciphertext multiply.
func (c *Context) NewEvaluator(rlk *rlwe.RelinearizationKey) *Evaluator {
	var ek rlwe.EvaluationKey
	if rlk != nil {
		ek.Rlk = rlk
	}
	return &Evaluator{ctx: c, eval: bfv.NewEvaluator(c.params, ek), encoder: c.encoder}
}

// Add returns a + b.
func (ev *Evaluator) Add(a, b *rlwe.Ciphertext) *rlwe.Ciphertext {
	out := bfv.NewCiphertext(ev.ctx.params, 1)
	ev.eval.Add(a, b, out)
	return out
}

// Sub returns a - b.
func (ev *Evaluator) Sub(a, b *rlwe.Ciphertext) *rlwe.Ciphertext {
	out := bfv.NewCiphertext(ev.ctx.params, 1)
	ev.eval.Sub(a, b, out)
	return out
}

// Negate returns -a.
func (ev *Evaluator) Negate(a *rlwe.Ciphertext) *rlwe.Ciphertext {
	out := bfv.NewCiphertext(ev.ctx.params, 1)
	ev.eval.Neg(a, out)
	return out
}

// AddPlainUint homomorphically adds a cleartext scalar (broadcast to
// every slot) to a.
func (ev *Evaluator) AddPlainUint(a *rlwe.Ciphertext, v uint64) *rlwe.Ciphertext {
	vals := make([]uint64, ev.ctx.Slots())
	for i := range vals {
		vals[i] = v
	}
	pt := bfv.NewPlaintext(ev.ctx.params)
	ev.encoder.EncodeUint(vals, pt)
	out := bfv.NewCiphertext(ev.ctx.params, 1)
	ev.eval.Add(a, pt, out)
	return out
}

// SelectSlot zeroes every slot of a except slot i, by multiplying
// with a plaintext unit vector in the multiplication-friendly NTT
// domain. This is the one multiplicative operation in the protocol:
// it costs a single level of noise growth, never relinearization,
// since the second operand stays a plaintext.
func (ev *Evaluator) SelectSlot(a *rlwe.Ciphertext, i int) *rlwe.Ciphertext {
	mask := make([]uint64, ev.ctx.Slots())
	mask[i] = 1
	ptMul := bfv.NewPlaintextMul(ev.ctx.params)
	ev.encoder.EncodeUintMul(mask, ptMul)
	out := bfv.NewCiphertext(ev.ctx.params, 1)
	ev.eval.Mul(a, ptMul, out)
	return out
}

// MarshalCiphertext serializes a ciphertext for the wire.
// *rlwe.Ciphertext implements encoding.BinaryMarshaler.
func MarshalCiphertext(ct *rlwe.Ciphertext) ([]byte, error) {
	return ct.MarshalBinary()
}

// UnmarshalCiphertext deserializes a ciphertext produced by this
// Context's parameter set.
func (c *Context) UnmarshalCiphertext(data []byte) (*rlwe.Ciphertext, error) {
	ct := bfv.NewCiphertext(c.params, 1)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("he: unmarshal ciphertext: %w", err)
	}
	return ct, nil
}

// MarshalPublicKey serializes the Receiver's public key for the
// handshake message.
func MarshalPublicKey(pk *rlwe.PublicKey) ([]byte, error) {
	return pk.MarshalBinary()
}

// UnmarshalPublicKey deserializes a public key received over the
// wire.
func (c *Context) UnmarshalPublicKey(data []byte) (*rlwe.PublicKey, error) {
	pk := rlwe.NewPublicKey(c.params.Parameters)
	if err := pk.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("he: unmarshal public key: %w", err)
	}
	return pk, nil
}
