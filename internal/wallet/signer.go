// Package wallet implements local signing for the rpc and wallet provider
// kinds. KeySigner signs transactions with a private key held in memory;
// KeyWallet wraps it in the EIP-1193 request interface so the wallet
// provider can run without a browser extension.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs with a secp256k1 private key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewKeySigner parses a raw 32-byte private key.
func NewKeySigner(raw []byte) (*KeySigner, error) {
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// GenerateKeySigner creates a fresh key and returns its raw bytes with the signer.
func GenerateKeySigner() (*KeySigner, []byte, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, crypto.FromECDSA(key), nil
}

// Address returns the account address.
func (s *KeySigner) Address() common.Address { return s.addr }

// SignTx signs tx for chainID with the latest signer the chain supports.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}
