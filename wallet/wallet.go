////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package wallet holds the wallet identity of a user and a local signer used
// to provision network access.
package wallet

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"gitlab.com/elixxir/chatsync/network"
)

// Error messages.
const (
	invalidAddressErr = "invalid wallet address %q"
	decodeKeyErr      = "failed to decode private key: %+v"
	keyLengthErr      = "private key must be 32 bytes, received %d"
	generateKeyErr    = "failed to generate private key: %+v"
	signErr           = "failed to sign message: %+v"
	sigLengthErr      = "signature must be 65 bytes, received %d"
	recoverErr        = "failed to recover public key: %+v"
)

// Address is a wallet address in canonical form: lower-case hex with a 0x
// prefix.
type Address string

// ParseAddress validates the address and returns its canonical form.
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", errors.Errorf(invalidAddressErr, s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", errors.Errorf(invalidAddressErr, s)
	}
	return Address(s), nil
}

// Equal compares two addresses case-insensitively.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// String returns the address as a string. This function adheres to the
// fmt.Stringer interface.
func (a Address) String() string {
	return string(a)
}

// Identifier returns the network identifier of the address.
func (a Address) Identifier() network.Identifier {
	return network.Identifier{Kind: network.Ethereum, Value: strings.ToLower(string(a))}
}

// Wallet is a signing capability bound to an address.
type Wallet interface {
	Address() Address
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Signer adapts a Wallet to the network.Signer interface.
func Signer(w Wallet) network.Signer {
	return signer{w}
}

type signer struct {
	w Wallet
}

func (s signer) Identifier() network.Identifier {
	return s.w.Address().Identifier()
}

func (s signer) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.w.SignMessage(ctx, msg)
}

// Local is a Wallet backed by an in-process secp256k1 key.
type Local struct {
	key     *btcec.PrivateKey
	address Address
}

// NewLocal generates a Local wallet with a fresh key.
func NewLocal() (*Local, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Errorf(generateKeyErr, err)
	}
	return newLocal(key), nil
}

// LoadLocal builds a Local wallet from a hex encoded private key, with or
// without a 0x prefix.
func LoadLocal(hexKey string) (*Local, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Errorf(decodeKeyErr, err)
	}
	if len(keyBytes) != btcec.PrivKeyBytesLen {
		return nil, errors.Errorf(keyLengthErr, len(keyBytes))
	}
	key, _ := btcec.PrivKeyFromBytes(keyBytes)
	return newLocal(key), nil
}

func newLocal(key *btcec.PrivateKey) *Local {
	return &Local{key: key, address: pubKeyAddress(key.PubKey())}
}

// Address returns the address derived from the public key.
func (l *Local) Address() Address {
	return l.address
}

// PrivateKeyHex returns the hex encoded private key.
func (l *Local) PrivateKeyHex() string {
	return hex.EncodeToString(l.key.Serialize())
}

// SignMessage produces a 65 byte r||s||v personal-message signature.
func (l *Local) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compact, err := ecdsa.SignCompact(l.key, personalHash(msg), false)
	if err != nil {
		return nil, errors.Errorf(signErr, err)
	}

	// Compact signatures lead with the recovery byte
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// RecoverAddress returns the address that produced the signature over msg.
func RecoverAddress(msg, sig []byte) (Address, error) {
	if len(sig) != 65 {
		return "", errors.Errorf(sigLengthErr, len(sig))
	}

	compact := make([]byte, 65)
	compact[0] = sig[64]
	if compact[0] < 27 {
		compact[0] += 27
	}
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, personalHash(msg))
	if err != nil {
		return "", errors.Errorf(recoverErr, err)
	}
	return pubKeyAddress(pub), nil
}

func personalHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return keccak256([]byte(prefix), msg)
}

func pubKeyAddress(pub *btcec.PublicKey) Address {
	hash := keccak256(pub.SerializeUncompressed()[1:])
	return Address("0x" + hex.EncodeToString(hash[12:]))
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
