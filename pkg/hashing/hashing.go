package hashing

import (
	"fmt"
	"math/big"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/hashicorp/go-version"
)

/*
Digest derivation

	transaction:  EIP-712( SafeTx{to, value, data, operation, safeTxGas, baseGas, gasPrice,
	                              gasToken, refundReceiver, nonce} )            in the account domain
	raw message:  EIP-712( SafeMessage{ message: EIP-191(raw) } )              in the account domain
	typed message: EIP-712( SafeMessage{ message: EIP-712(typed) } )           in the account domain
	nested:       EIP-712( SafeMessage{ message: abi.encode(requester, digest) } ) in the nested domain

The account domain is EIP712Domain(uint256 chainId, address verifyingContract), or
EIP712Domain(address verifyingContract) for accounts older than 1.3.0.

Every function here is pure: same inputs, same 32 bytes.
*/

const (
	domainTypeName      = "EIP712Domain"
	SafeTxTypeName      = "SafeTx"
	SafeMessageTypeName = "SafeMessage"
)

var (
	chainIdDomainVersion = version.Must(version.NewVersion("1.3.0"))
	baseGasVersion       = version.Must(version.NewVersion("1.0.0"))

	safeTxFields = []apitypes.Type{
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "operation", Type: "uint8"},
		{Name: "safeTxGas", Type: "uint256"},
		{Name: "baseGas", Type: "uint256"},
		{Name: "gasPrice", Type: "uint256"},
		{Name: "gasToken", Type: "address"},
		{Name: "refundReceiver", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	}

	safeMessageFields = []apitypes.Type{
		{Name: "message", Type: "bytes"},
	}
)

// DomainFor derives the hashing domain of an account from its address and version.
// An empty version means the current layout.
func DomainFor(account *types.Account, chainID *big.Int) (types.Domain, error) {
	if account == nil {
		return types.Domain{}, fmt.Errorf("%w: account is nil", types.ErrInvalidAccount)
	}

	domain := types.Domain{
		ChainID:          chainID,
		VerifyingAccount: account.Address,
		Standard:         types.StandardEIP712,
	}
	if account.Version == "" {
		return domain, nil
	}

	v, err := version.NewVersion(account.Version)
	if err != nil {
		return types.Domain{}, fmt.Errorf("%w: account %s has unparseable version %q: %v",
			types.ErrInvalidAccount, account.Address.Hex(), account.Version, err)
	}
	if v.LessThan(chainIdDomainVersion) {
		domain.Standard = types.StandardEIP712Legacy
	}
	if v.LessThan(baseGasVersion) {
		domain.LegacyTxLayout = true
	}
	return domain, nil
}

// DigestOf computes the account-scoped digest of an action
func DigestOf(action *types.Action, domain types.Domain) (types.Digest, error) {
	if err := action.Validate(); err != nil {
		return types.Digest{}, err
	}

	switch action.Kind {
	case types.ActionKindTransaction:
		return TransactionHash(action.Transaction, domain)
	case types.ActionKindMessage:
		messageHash, err := MessageHash(action.Message)
		if err != nil {
			return types.Digest{}, err
		}
		return AccountDigest(domain, messageHash)
	default:
		return types.Digest{}, fmt.Errorf("%w: unknown action kind %q", types.ErrInvalidAction, action.Kind)
	}
}

// TransactionHash returns the structured hash of a transaction in the account domain
func TransactionHash(tx *types.Transaction, domain types.Domain) (types.Digest, error) {
	if tx == nil {
		return types.Digest{}, fmt.Errorf("%w: transaction is nil", types.ErrInvalidAction)
	}

	fields := safeTxFields
	baseGasField := "baseGas"
	if domain.LegacyTxLayout {
		fields = make([]apitypes.Type, len(safeTxFields))
		copy(fields, safeTxFields)
		fields[5] = apitypes.Type{Name: "dataGas", Type: "uint256"}
		baseGasField = "dataGas"
	}

	data := tx.Data
	if data == nil {
		data = []byte{}
	}

	message := apitypes.TypedDataMessage{
		"to":             tx.To.Hex(),
		"value":          orZero(tx.Value),
		"data":           data,
		"operation":      new(big.Int).SetUint64(uint64(tx.Operation)),
		"safeTxGas":      orZero(tx.SafeTxGas),
		baseGasField:     orZero(tx.BaseGas),
		"gasPrice":       orZero(tx.GasPrice),
		"gasToken":       tx.GasToken.Hex(),
		"refundReceiver": tx.RefundReceiver.Hex(),
		"nonce":          orZero(tx.Nonce),
	}

	return hashTyped(domain, SafeTxTypeName, fields, message)
}

// MessageHash returns the unscoped hash of a message: EIP-191 for raw payloads,
// EIP-712 for typed payloads.
func MessageHash(msg *types.Message) (common.Hash, error) {
	if msg == nil {
		return common.Hash{}, fmt.Errorf("%w: message is nil", types.ErrInvalidAction)
	}
	if err := msg.Validate(); err != nil {
		return common.Hash{}, err
	}

	switch msg.Kind {
	case types.MessageKindRaw:
		return common.BytesToHash(accounts.TextHash(msg.Raw)), nil
	case types.MessageKindTyped:
		hash, _, err := apitypes.TypedDataAndHash(*msg.Typed)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: failed to hash typed data: %v", types.ErrInvalidAction, err)
		}
		return common.BytesToHash(hash), nil
	default:
		return common.Hash{}, fmt.Errorf("%w: unknown message kind %q", types.ErrInvalidAction, msg.Kind)
	}
}

// AccountDigest binds a message hash to an account and chain
func AccountDigest(domain types.Domain, messageHash common.Hash) (types.Digest, error) {
	return safeMessageHash(domain, messageHash.Bytes())
}

// NestedDigest is the digest a nested account approves when requester asks it to
// co-sign digest. Binding requester keeps the approval from being replayed against
// a different parent.
func NestedDigest(requester common.Address, nestedDomain types.Domain, digest types.Digest) (types.Digest, error) {
	payload, err := nestedPayloadArgs.Pack(requester, [32]byte(digest))
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to encode nested approval payload: %w", err)
	}
	return safeMessageHash(nestedDomain, payload)
}

var nestedPayloadArgs = func() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	return abi.Arguments{{Type: addressType}, {Type: bytes32Type}}
}()

func safeMessageHash(domain types.Domain, message []byte) (types.Digest, error) {
	return hashTyped(domain, SafeMessageTypeName, safeMessageFields, apitypes.TypedDataMessage{
		"message": message,
	})
}

func hashTyped(domain types.Domain, primaryType string, fields []apitypes.Type, message apitypes.TypedDataMessage) (types.Digest, error) {
	domainFields, typedDomain, err := eip712Domain(domain)
	if err != nil {
		return types.Digest{}, err
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			domainTypeName: domainFields,
			primaryType:    fields,
		},
		PrimaryType: primaryType,
		Domain:      typedDomain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to hash %s: %w", primaryType, err)
	}
	return common.BytesToHash(hash), nil
}

func eip712Domain(domain types.Domain) ([]apitypes.Type, apitypes.TypedDataDomain, error) {
	if domain.VerifyingAccount == (common.Address{}) {
		return nil, apitypes.TypedDataDomain{}, fmt.Errorf("%w: domain has no verifying account", types.ErrInvalidAccount)
	}

	switch domain.Standard {
	case types.StandardEIP712:
		if domain.ChainID == nil {
			return nil, apitypes.TypedDataDomain{}, fmt.Errorf("domain for %s requires a chain id", domain.VerifyingAccount.Hex())
		}
		return []apitypes.Type{
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			}, apitypes.TypedDataDomain{
				ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
				VerifyingContract: domain.VerifyingAccount.Hex(),
			}, nil
	case types.StandardEIP712Legacy:
		return []apitypes.Type{
				{Name: "verifyingContract", Type: "address"},
			}, apitypes.TypedDataDomain{
				VerifyingContract: domain.VerifyingAccount.Hex(),
			}, nil
	default:
		return nil, apitypes.TypedDataDomain{}, fmt.Errorf("unsupported hashing standard %q", domain.Standard)
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
