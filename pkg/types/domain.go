package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Standard selects the domain separator layout used for structured hashing
type Standard string

const (
	// StandardEIP712 binds the chain id and the verifying account
	StandardEIP712 Standard = "eip712"
	// StandardEIP712Legacy binds only the verifying account (account versions < 1.3.0)
	StandardEIP712Legacy Standard = "eip712-legacy"
)

// Domain holds the parameters a digest is bound to
type Domain struct {
	ChainID          *big.Int       `json:"chainId"`
	VerifyingAccount common.Address `json:"verifyingAccount"`
	Standard         Standard       `json:"standard"`

	// LegacyTxLayout selects the pre-1.0.0 transaction struct that names baseGas "dataGas"
	LegacyTxLayout bool `json:"legacyTxLayout,omitempty"`
}
