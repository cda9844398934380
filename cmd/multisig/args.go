package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// transactionJSON is the on-disk form of a transaction. Amounts accept decimal or 0x hex.
type transactionJSON struct {
	To             common.Address        `json:"to"`
	Value          *math.HexOrDecimal256 `json:"value"`
	Data           hexutil.Bytes         `json:"data"`
	Operation      types.Operation       `json:"operation"`
	SafeTxGas      *math.HexOrDecimal256 `json:"safeTxGas"`
	BaseGas        *math.HexOrDecimal256 `json:"baseGas"`
	GasPrice       *math.HexOrDecimal256 `json:"gasPrice"`
	GasToken       common.Address        `json:"gasToken"`
	RefundReceiver common.Address        `json:"refundReceiver"`
	Nonce          *math.HexOrDecimal256 `json:"nonce"`
}

func (t *transactionJSON) toTransaction() *types.Transaction {
	return &types.Transaction{
		To:             t.To,
		Value:          (*big.Int)(t.Value),
		Data:           t.Data,
		Operation:      t.Operation,
		SafeTxGas:      (*big.Int)(t.SafeTxGas),
		BaseGas:        (*big.Int)(t.BaseGas),
		GasPrice:       (*big.Int)(t.GasPrice),
		GasToken:       t.GasToken,
		RefundReceiver: t.RefundReceiver,
		Nonce:          (*big.Int)(t.Nonce),
	}
}

// parseAction builds an action from exactly one of the four action sources
func parseAction(message, messageHex, typedDataFile, txFile string) (*types.Action, error) {
	set := 0
	for _, v := range []string{message, messageHex, typedDataFile, txFile} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of --message, --message-hex, --typed-data-file or --tx-file is required")
	}

	switch {
	case message != "":
		return types.NewRawMessageAction([]byte(message)), nil
	case messageHex != "":
		raw, err := hexutil.Decode(messageHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --message-hex: %w", err)
		}
		return types.NewRawMessageAction(raw), nil
	case typedDataFile != "":
		data, err := os.ReadFile(typedDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read typed data: %w", err)
		}
		var typed apitypes.TypedData
		if err := json.Unmarshal(data, &typed); err != nil {
			return nil, fmt.Errorf("failed to parse typed data: %w", err)
		}
		return types.NewTypedMessageAction(&typed), nil
	default:
		data, err := os.ReadFile(txFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read transaction: %w", err)
		}
		var tx transactionJSON
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		return types.NewTransactionAction(tx.toTransaction()), nil
	}
}

func parseDigest(s string) (types.Digest, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return types.Digest{}, fmt.Errorf("invalid digest: %w", err)
	}
	if len(b) != common.HashLength {
		return types.Digest{}, fmt.Errorf("invalid digest: expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// parseSignatureArg parses 0x<r||s||v>[:<method>]. The method defaults to typed data.
func parseSignatureArg(s string) (*signature.DirectSignature, error) {
	sigHex, methodName := s, ""
	if i := strings.LastIndex(s, ":"); i >= 0 {
		sigHex, methodName = s[:i], s[i+1:]
	}

	method := signature.MethodTypedData
	if methodName != "" {
		m, err := signature.ParseMethod(methodName)
		if err != nil {
			return nil, err
		}
		method = m
	}

	raw, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	return signature.NewDirectSignature(raw, method)
}

func formatSignatureArg(sig *signature.DirectSignature) string {
	return fmt.Sprintf("%s:%s", hexutil.Encode(sig.Signature[:]), sig.Method)
}

// parseNestedArg parses <owner>=0x<blob>
func parseNestedArg(s string) (common.Address, []byte, error) {
	ownerStr, blobHex, ok := strings.Cut(s, "=")
	if !ok {
		return common.Address{}, nil, fmt.Errorf("nested signature must be <owner>=0x<blob>, got %q", s)
	}
	owner, err := config.ParseAddress(ownerStr)
	if err != nil {
		return common.Address{}, nil, err
	}
	blob, err := hexutil.Decode(blobHex)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid nested blob for %s: %w", owner.Hex(), err)
	}
	return owner, blob, nil
}
