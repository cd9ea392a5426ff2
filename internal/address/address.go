package address

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto/blake2b"
	"github.com/mr-tron/base58"
)

// Network is the network prefix nibble of an address.
type Network byte

const (
	Mainnet Network = 0x00
	Testnet Network = 0x10
)

// Type is the address kind.
type Type byte

const (
	P2PK Type = 1
	P2SH Type = 2
	P2S  Type = 3
)

const (
	checksumSize = 4
	pubKeySize   = 33
	p2shSize     = 24
)

var (
	ErrInvalid  = errors.New("invalid address")
	ErrChecksum = errors.New("address checksum mismatch")
)

// p2pkTreePrefix is the ErgoTree header for a ProveDlog proposition.
var p2pkTreePrefix = []byte{0x00, 0x08, 0xcd}

// Address is a decoded ledger address.
type Address struct {
	Network Network
	Type    Type
	Content []byte
	raw     string
}

// Parse decodes a base58 address and verifies its checksum.
func Parse(input string) (Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	data, err := base58.Decode(input)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(data) < 1+checksumSize+1 {
		return Address{}, fmt.Errorf("%w: too short", ErrInvalid)
	}

	body := data[:len(data)-checksumSize]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:checksumSize], data[len(data)-checksumSize:]) {
		return Address{}, ErrChecksum
	}

	prefix := body[0]
	addr := Address{
		Network: Network(prefix & 0xf0),
		Type:    Type(prefix & 0x0f),
		Content: append([]byte(nil), body[1:]...),
		raw:     input,
	}

	switch addr.Network {
	case Mainnet, Testnet:
	default:
		return Address{}, fmt.Errorf("%w: unknown network 0x%02x", ErrInvalid, byte(addr.Network))
	}

	switch addr.Type {
	case P2PK:
		if len(addr.Content) != pubKeySize {
			return Address{}, fmt.Errorf("%w: p2pk content length %d", ErrInvalid, len(addr.Content))
		}
	case P2SH:
		if len(addr.Content) != p2shSize {
			return Address{}, fmt.Errorf("%w: p2sh content length %d", ErrInvalid, len(addr.Content))
		}
	case P2S:
	default:
		return Address{}, fmt.Errorf("%w: unknown type %d", ErrInvalid, byte(addr.Type))
	}

	return addr, nil
}

// Encode builds the base58 text for an address.
func Encode(network Network, typ Type, content []byte) string {
	body := make([]byte, 0, 1+len(content)+checksumSize)
	body = append(body, byte(network)|byte(typ))
	body = append(body, content...)
	sum := blake2b.Sum256(body)
	body = append(body, sum[:checksumSize]...)
	return base58.Encode(body)
}

func (a Address) String() string {
	return a.raw
}

// PublicKey returns the compressed public key of a P2PK address.
func (a Address) PublicKey() ([]byte, error) {
	if a.Type != P2PK {
		return nil, fmt.Errorf("%w: not a p2pk address", ErrInvalid)
	}
	return append([]byte(nil), a.Content...), nil
}

// ErgoTree returns the serialized script guarding boxes at this address.
func (a Address) ErgoTree() ([]byte, error) {
	switch a.Type {
	case P2PK:
		tree := make([]byte, 0, len(p2pkTreePrefix)+len(a.Content))
		tree = append(tree, p2pkTreePrefix...)
		return append(tree, a.Content...), nil
	case P2S:
		return append([]byte(nil), a.Content...), nil
	default:
		return nil, fmt.Errorf("%w: script of p2sh address is not recoverable", ErrInvalid)
	}
}
