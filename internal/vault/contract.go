package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	// maxSymbolBytes bounds the raw symbol() response; a collaborator that
	// answers with more is returning garbage or trying to exhaust memory.
	maxSymbolBytes = 128

	// maxSymbolChars bounds the decoded symbol length.
	maxSymbolChars = 32
)

// Yearn V2 vault read surface. decimals() is declared uint256 by Yearn V2,
// uint8 by plain ERC-20s; the raw-word probe below covers both.
const vaultReadABI = `[
	{
		"inputs": [],
		"name": "pricePerShare",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "asset",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const erc20ReadABI = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ContractReader implements Reader against an on-chain Yearn-style vault.
type ContractReader struct {
	address  common.Address
	contract *bind.BoundContract
	erc20    *bind.BoundContract
	backend  bind.ContractCaller
	recorder FallbackRecorder
}

// NewContractReader binds a vault at address to the given backend.
func NewContractReader(address common.Address, backend bind.ContractCaller) (*ContractReader, error) {
	if backend == nil {
		return nil, fmt.Errorf("contract backend is required")
	}

	vaultABI, err := abi.JSON(strings.NewReader(vaultReadABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	return &ContractReader{
		address:  address,
		contract: bind.NewBoundContract(address, vaultABI, backend, nil, nil),
		erc20:    bind.NewBoundContract(address, tokenABI, backend, nil, nil),
		backend:  backend,
	}, nil
}

// Address returns the vault address this reader is bound to.
func (r *ContractReader) Address() common.Address {
	return r.address
}

// SetFallbackRecorder attaches instrumentation for probe fallbacks. Set it
// before the reader is shared; a nil recorder disables reporting.
func (r *ContractReader) SetFallbackRecorder(rec FallbackRecorder) {
	r.recorder = rec
}

// Rate fetches pricePerShare fresh from the chain.
func (r *ContractReader) Rate(ctx context.Context) (*uint256.Int, error) {
	var result []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &result, "pricePerShare"); err != nil {
		return nil, fmt.Errorf("pricePerShare call failed: %w", err)
	}
	raw, ok := result[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: pricePerShare returned %T", ErrBadAnswer, result[0])
	}
	rate, overflow := uint256.FromBig(raw)
	if overflow || raw.Sign() < 0 {
		return nil, fmt.Errorf("%w: pricePerShare out of uint256 range", ErrBadAnswer)
	}
	return rate, nil
}

// Decimals probes the typed decimals() call first and falls back to a raw
// word read (Yearn V2 declares the return as uint256, which a strict uint8
// ABI decode rejects). Values outside the valid range are the caller's
// problem to reject; this reader only reports what the contract answered.
func (r *ContractReader) Decimals(ctx context.Context) (int, error) {
	return probe(ctx, r.recorder, []lookup[int]{
		{method: "decimals()", call: r.typedDecimals},
		{method: "raw decimals()", call: r.rawDecimals},
	})
}

func (r *ContractReader) typedDecimals(ctx context.Context) (int, error) {
	var result []interface{}
	if err := r.erc20.Call(&bind.CallOpts{Context: ctx}, &result, "decimals"); err != nil {
		return 0, err
	}
	v, ok := result[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals returned %T", ErrBadAnswer, result[0])
	}
	return int(v), nil
}

func (r *ContractReader) rawDecimals(ctx context.Context) (int, error) {
	word, err := r.rawCall(ctx, "decimals()")
	if err != nil {
		return 0, err
	}
	v := new(big.Int).SetBytes(word)
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: decimals word out of range", ErrBadAnswer)
	}
	return int(v.Int64()), nil
}

// UnderlyingAsset probes token() (Yearn V2) and then asset() (ERC-4626).
func (r *ContractReader) UnderlyingAsset(ctx context.Context) (common.Address, error) {
	return probe(ctx, r.recorder, []lookup[common.Address]{
		{method: "token()", call: func(ctx context.Context) (common.Address, error) {
			return r.addressCall(ctx, "token")
		}},
		{method: "asset()", call: func(ctx context.Context) (common.Address, error) {
			return r.addressCall(ctx, "asset")
		}},
	})
}

func (r *ContractReader) addressCall(ctx context.Context, method string) (common.Address, error) {
	var result []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &result, method); err != nil {
		return common.Address{}, err
	}
	addr, ok := result[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s returned %T", ErrBadAnswer, method, result[0])
	}
	return addr, nil
}

// DisplaySymbol probes the string-typed symbol() first and falls back to a
// raw word read for tokens that declare symbol as bytes32. Responses beyond
// the byte or character budget are rejected.
func (r *ContractReader) DisplaySymbol(ctx context.Context) (string, error) {
	sym, err := probe(ctx, r.recorder, []lookup[string]{
		{method: "symbol()", call: r.typedSymbol},
		{method: "raw symbol()", call: r.rawSymbol},
	})
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(sym) > maxSymbolChars {
		return "", fmt.Errorf("%w: symbol exceeds %d characters", ErrBadAnswer, maxSymbolChars)
	}
	return sym, nil
}

func (r *ContractReader) typedSymbol(ctx context.Context) (string, error) {
	var result []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &result, "symbol"); err != nil {
		return "", err
	}
	sym, ok := result[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: symbol returned %T", ErrBadAnswer, result[0])
	}
	return sym, nil
}

func (r *ContractReader) rawSymbol(ctx context.Context) (string, error) {
	word, err := r.rawCall(ctx, "symbol()")
	if err != nil {
		return "", err
	}
	// bytes32 symbol: right-padded with NULs.
	trimmed := strings.TrimRight(string(word), "\x00")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty symbol word", ErrBadAnswer)
	}
	return trimmed, nil
}

// rawCall performs an un-ABI-decoded eth_call and returns the first 32-byte
// word of the response. Responses over maxSymbolBytes are rejected before
// any decoding.
func (r *ContractReader) rawCall(ctx context.Context, signature string) ([]byte, error) {
	selector := crypto.Keccak256([]byte(signature))[:4]
	ret, err := r.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &r.address,
		Data: selector,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(ret) > maxSymbolBytes {
		return nil, fmt.Errorf("%w: response of %d bytes exceeds budget", ErrBadAnswer, len(ret))
	}
	if len(ret) < 32 {
		return nil, fmt.Errorf("%w: short response of %d bytes", ErrBadAnswer, len(ret))
	}
	return ret[:32], nil
}

// ERC20Reader implements TokenReader against a plain ERC-20 token. It shares
// the vault reader's probe machinery for the decimals and symbol paths.
type ERC20Reader struct {
	inner *ContractReader
}

// NewERC20Reader binds an ERC-20 token at address to the given backend.
func NewERC20Reader(address common.Address, backend bind.ContractCaller) (*ERC20Reader, error) {
	inner, err := NewContractReader(address, backend)
	if err != nil {
		return nil, err
	}
	return &ERC20Reader{inner: inner}, nil
}

// Address returns the token address this reader is bound to.
func (r *ERC20Reader) Address() common.Address {
	return r.inner.Address()
}

// SetFallbackRecorder attaches instrumentation for probe fallbacks.
func (r *ERC20Reader) SetFallbackRecorder(rec FallbackRecorder) {
	r.inner.SetFallbackRecorder(rec)
}

// Decimals reports the token's decimal precision.
func (r *ERC20Reader) Decimals(ctx context.Context) (int, error) {
	return r.inner.Decimals(ctx)
}

// DisplaySymbol returns the token's symbol.
func (r *ERC20Reader) DisplaySymbol(ctx context.Context) (string, error) {
	return r.inner.DisplaySymbol(ctx)
}
