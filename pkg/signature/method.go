package signature

import (
	"fmt"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// Method is how an owner signed a digest. The recovered signer only matches the
// claimed owner under the method that was actually used, so it travels in the record.
type Method uint8

const (
	MethodUnknown Method = iota
	// MethodEthSign signs the EIP-191 personal-message hash of the digest (plain-hash path)
	MethodEthSign
	// MethodTypedData signs the digest itself (structured-hash path)
	MethodTypedData
)

const (
	methodNameEthSign   = "eth_sign"
	methodNameTypedData = "eth_signTypedData"
)

func (m Method) String() string {
	switch m {
	case MethodEthSign:
		return methodNameEthSign
	case MethodTypedData:
		return methodNameTypedData
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

func (m Method) Valid() bool {
	return m == MethodEthSign || m == MethodTypedData
}

// SigningHash is the 32-byte value the signer's key actually signs for digest
func (m Method) SigningHash(digest types.Digest) common.Hash {
	if m == MethodEthSign {
		return common.BytesToHash(accounts.TextHash(digest.Bytes()))
	}
	return digest
}

// ParseMethod accepts the JSON-RPC method names used by wallets
func ParseMethod(s string) (Method, error) {
	switch s {
	case methodNameEthSign, "personal_sign":
		return MethodEthSign, nil
	case methodNameTypedData, "eth_signTypedData_v4":
		return MethodTypedData, nil
	default:
		return MethodUnknown, fmt.Errorf("unknown signing method %q", s)
	}
}
