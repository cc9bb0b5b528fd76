// internal/blockchain/solbc/address.go
package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress - адрес не является публичным ключом Solana.
var ErrInvalidAddress = errors.New("invalid solana address")

// ParseAddress проверяет base58-запись 32-байтового публичного ключа.
func ParseAddress(address string) (solana.PublicKey, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return solana.PublicKey{}, ErrInvalidAddress
	}
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pk, nil
}

// IsValidAddress сообщает, является ли строка корректным адресом.
func IsValidAddress(address string) bool {
	_, err := ParseAddress(address)
	return err == nil
}

// SimulatedSignature кодирует 64 байта в base58, как подпись транзакции.
func SimulatedSignature(raw [64]byte) string {
	return base58.Encode(raw[:])
}
