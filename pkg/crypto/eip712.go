package crypto

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/sha3"
)

// Signature is the r/s/v triple the venue expects alongside each action.
// V carries the Ethereum-style recovery ID (27 or 28).
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// ActionHash computes the digest binding an action to its nonce: the
// msgpack encoding of the action, followed by the big-endian nonce and a
// vault marker byte (0x00 here: this signer never trades on behalf of a
// vault), hashed with keccak256. The venue recomputes the same hash from
// the JSON payload, so msgpack field order must match JSON key order.
func ActionHash(action any, nonce int64) ([]byte, error) {
	data, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))
	data = append(data, nonceBytes[:]...)
	data = append(data, 0x00)

	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil), nil
}

// SignL1Action signs an exchange action with the phantom-agent scheme:
// the action hash becomes the connectionId of an EIP-712 Agent struct,
// whose source marks mainnet ("a") vs everything else ("b").
func SignL1Action(s *Signer, action any, nonce int64, isMainnet bool) (Signature, error) {
	connectionID, err := ActionHash(action, nonce)
	if err != nil {
		return Signature{}, err
	}

	source := "b"
	if isMainnet {
		source = "a"
	}

	digest, err := agentDigest(source, connectionID)
	if err != nil {
		return Signature{}, err
	}

	sig, err := s.Sign(digest)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign action: %w", err)
	}

	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

// agentDigest builds the EIP-712 digest for the phantom Agent struct
func agentDigest(source string, connectionID []byte) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(1337)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": hexutil.Encode(connectionID),
		},
	}

	return TypedDataDigest(typedData)
}

// TypedDataDigest computes the final EIP-712 digest:
// keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func TypedDataDigest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	digest := crypto.Keccak256(
		[]byte("\x19\x01"),
		domainSeparator,
		typedDataHash,
	)
	return digest, nil
}
