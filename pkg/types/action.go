package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Operation is the call type the account performs when executing a transaction
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OperationCall:
		return "call"
	case OperationDelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

// Transaction is an account transaction together with its execution metadata.
// Nil big integers hash as zero.
type Transaction struct {
	To             common.Address `json:"to"`
	Value          *big.Int       `json:"value"`
	Data           []byte         `json:"data"`
	Operation      Operation      `json:"operation"`
	SafeTxGas      *big.Int       `json:"safeTxGas"`
	BaseGas        *big.Int       `json:"baseGas"`
	GasPrice       *big.Int       `json:"gasPrice"`
	GasToken       common.Address `json:"gasToken"`
	RefundReceiver common.Address `json:"refundReceiver"`
	Nonce          *big.Int       `json:"nonce"`
}

type MessageKind string

const (
	// MessageKindRaw payloads are hashed with the plain-hash standard (EIP-191)
	MessageKindRaw MessageKind = "raw"
	// MessageKindTyped payloads are hashed with the structured-hash standard (EIP-712)
	MessageKindTyped MessageKind = "typed"
)

// Message is an off-chain message; Kind names which payload field is populated
type Message struct {
	Kind  MessageKind         `json:"kind"`
	Raw   []byte              `json:"raw,omitempty"`
	Typed *apitypes.TypedData `json:"typed,omitempty"`
}

type ActionKind string

const (
	ActionKindTransaction ActionKind = "transaction"
	ActionKindMessage     ActionKind = "message"
)

// Action is the thing being approved. Callers declare Kind explicitly; the hashing
// engine never infers it from which field happens to be set.
type Action struct {
	Kind        ActionKind   `json:"kind"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Message     *Message     `json:"message,omitempty"`
}

func NewTransactionAction(tx *Transaction) *Action {
	return &Action{Kind: ActionKindTransaction, Transaction: tx}
}

func NewRawMessageAction(raw []byte) *Action {
	return &Action{Kind: ActionKindMessage, Message: &Message{Kind: MessageKindRaw, Raw: raw}}
}

func NewTypedMessageAction(typed *apitypes.TypedData) *Action {
	return &Action{Kind: ActionKindMessage, Message: &Message{Kind: MessageKindTyped, Typed: typed}}
}

// Validate checks that the populated payload matches the declared kind
func (a *Action) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: action is nil", ErrInvalidAction)
	}
	switch a.Kind {
	case ActionKindTransaction:
		if a.Transaction == nil {
			return fmt.Errorf("%w: transaction action without a transaction", ErrInvalidAction)
		}
		if a.Message != nil {
			return fmt.Errorf("%w: transaction action carries a message", ErrInvalidAction)
		}
		if a.Transaction.Operation > OperationDelegateCall {
			return fmt.Errorf("%w: unsupported %s", ErrInvalidAction, a.Transaction.Operation)
		}
		return nil
	case ActionKindMessage:
		if a.Message == nil {
			return fmt.Errorf("%w: message action without a message", ErrInvalidAction)
		}
		if a.Transaction != nil {
			return fmt.Errorf("%w: message action carries a transaction", ErrInvalidAction)
		}
		return a.Message.Validate()
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrInvalidAction, a.Kind)
	}
}

func (m *Message) Validate() error {
	switch m.Kind {
	case MessageKindRaw:
		if m.Typed != nil {
			return fmt.Errorf("%w: raw message carries typed data", ErrInvalidAction)
		}
		return nil
	case MessageKindTyped:
		if m.Typed == nil {
			return fmt.Errorf("%w: typed message without typed data", ErrInvalidAction)
		}
		if len(m.Raw) != 0 {
			return fmt.Errorf("%w: typed message carries raw bytes", ErrInvalidAction)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown message kind %q", ErrInvalidAction, m.Kind)
	}
}
