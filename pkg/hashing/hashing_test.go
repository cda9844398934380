package hashing

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

var (
	testAccount = common.HexToAddress("0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe")
	testChainID = big.NewInt(11155111)
)

func testDomain() types.Domain {
	return types.Domain{ChainID: testChainID, VerifyingAccount: testAccount, Standard: types.StandardEIP712}
}

func testTransaction() *types.Transaction {
	return &types.Transaction{
		To:        common.HexToAddress("0x00000000000000000000000000000000deadbeef"),
		Value:     big.NewInt(1_000_000_000),
		Data:      common.FromHex("0xa9059cbb"),
		Operation: types.OperationCall,
		SafeTxGas: big.NewInt(50_000),
		Nonce:     big.NewInt(7),
	}
}

// word left-pads b to 32 bytes, the way abi.encode lays out static values
func word(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}

func manualDomainSeparator() []byte {
	return crypto.Keccak256(
		crypto.Keccak256([]byte("EIP712Domain(uint256 chainId,address verifyingContract)")),
		word(testChainID.Bytes()),
		word(testAccount.Bytes()),
	)
}

func TestTypeHashes(t *testing.T) {
	require.Equal(t,
		common.HexToHash("0x47e79534a245952e8b16893a336b85a3d9ea9fa8c573f3d803afb92a79469218"),
		crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)")))
	require.Equal(t,
		common.HexToHash("0xbb8310d486368db6bd6f849402fdd73ad53d316b5a4b2644ad6efe0f941286d8"),
		crypto.Keccak256Hash([]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)")))
	require.Equal(t,
		common.HexToHash("0x60b3cbf8b4a223d68d641b3b6ddf9a298e7f33710cf3d3a9d1146b5a6150fbca"),
		crypto.Keccak256Hash([]byte("SafeMessage(bytes message)")))
}

func TestDigestOf_TransactionMatchesManualEncoding(t *testing.T) {
	tx := testTransaction()

	structHash := crypto.Keccak256(
		crypto.Keccak256([]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)")),
		word(tx.To.Bytes()),
		word(tx.Value.Bytes()),
		crypto.Keccak256(tx.Data),
		word([]byte{byte(tx.Operation)}),
		word(tx.SafeTxGas.Bytes()),
		word(nil),
		word(nil),
		word(nil),
		word(nil),
		word(tx.Nonce.Bytes()),
	)
	expected := crypto.Keccak256Hash([]byte{0x19, 0x01}, manualDomainSeparator(), structHash)

	digest, err := DigestOf(types.NewTransactionAction(tx), testDomain())
	require.NoError(t, err)
	require.Equal(t, expected, digest)
}

func TestDigestOf_RawMessageMatchesManualEncoding(t *testing.T) {
	raw := []byte("approve the budget")

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(raw), raw)
	messageHash := crypto.Keccak256([]byte(prefixed))
	structHash := crypto.Keccak256(
		crypto.Keccak256([]byte("SafeMessage(bytes message)")),
		crypto.Keccak256(messageHash),
	)
	expected := crypto.Keccak256Hash([]byte{0x19, 0x01}, manualDomainSeparator(), structHash)

	digest, err := DigestOf(types.NewRawMessageAction(raw), testDomain())
	require.NoError(t, err)
	require.Equal(t, expected, digest)
}

func mailTypedData() *apitypes.TypedData {
	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(1),
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: apitypes.TypedDataMessage{
			"from": map[string]interface{}{
				"name":   "Cow",
				"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			},
			"to": map[string]interface{}{
				"name":   "Bob",
				"wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
			},
			"contents": "Hello, Bob!",
		},
	}
}

func TestMessageHash_TypedStructureUsesRecursiveEncoding(t *testing.T) {
	hash, err := MessageHash(&types.Message{Kind: types.MessageKindTyped, Typed: mailTypedData()})
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2"), hash)
}

func TestDigestOf_Determinism(t *testing.T) {
	actions := map[string]*types.Action{
		"transaction": types.NewTransactionAction(testTransaction()),
		"raw":         types.NewRawMessageAction([]byte("hello")),
		"typed":       types.NewTypedMessageAction(mailTypedData()),
	}

	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			first, err := DigestOf(action, testDomain())
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				again, err := DigestOf(action, testDomain())
				require.NoError(t, err)
				require.Equal(t, first, again)
			}
		})
	}
}

func TestDigestOf_DomainSeparation(t *testing.T) {
	action := types.NewRawMessageAction([]byte("hello"))
	base, err := DigestOf(action, testDomain())
	require.NoError(t, err)

	otherChain := testDomain()
	otherChain.ChainID = big.NewInt(1)
	d, err := DigestOf(action, otherChain)
	require.NoError(t, err)
	require.NotEqual(t, base, d)

	otherAccount := testDomain()
	otherAccount.VerifyingAccount = common.HexToAddress("0x01")
	d, err = DigestOf(action, otherAccount)
	require.NoError(t, err)
	require.NotEqual(t, base, d)

	legacy := testDomain()
	legacy.Standard = types.StandardEIP712Legacy
	d, err = DigestOf(action, legacy)
	require.NoError(t, err)
	require.NotEqual(t, base, d)

	// the legacy domain ignores the chain id entirely
	legacyOtherChain := legacy
	legacyOtherChain.ChainID = big.NewInt(1)
	d2, err := DigestOf(action, legacyOtherChain)
	require.NoError(t, err)
	require.Equal(t, d, d2)
}

func TestDigestOf_LegacyTransactionLayout(t *testing.T) {
	action := types.NewTransactionAction(testTransaction())

	current, err := DigestOf(action, testDomain())
	require.NoError(t, err)

	legacy := testDomain()
	legacy.LegacyTxLayout = true
	old, err := DigestOf(action, legacy)
	require.NoError(t, err)
	require.NotEqual(t, current, old)
}

func TestDigestOf_RejectsUndeclaredKinds(t *testing.T) {
	_, err := DigestOf(&types.Action{Kind: types.ActionKindTransaction}, testDomain())
	require.ErrorIs(t, err, types.ErrInvalidAction)

	_, err = DigestOf(&types.Action{Kind: "blob"}, testDomain())
	require.ErrorIs(t, err, types.ErrInvalidAction)

	_, err = DigestOf(types.NewRawMessageAction([]byte("x")), types.Domain{VerifyingAccount: testAccount, Standard: types.StandardEIP712})
	require.Error(t, err, "current standard requires a chain id")
}

func TestDomainFor(t *testing.T) {
	tests := []struct {
		version        string
		standard       types.Standard
		legacyTxLayout bool
		wantErr        bool
	}{
		{"", types.StandardEIP712, false, false},
		{"1.4.1", types.StandardEIP712, false, false},
		{"1.3.0", types.StandardEIP712, false, false},
		{"1.3.0+L2", types.StandardEIP712, false, false},
		{"1.2.0", types.StandardEIP712Legacy, false, false},
		{"1.0.0", types.StandardEIP712Legacy, false, false},
		{"0.1.0", types.StandardEIP712Legacy, true, false},
		{"not-a-version", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			domain, err := DomainFor(&types.Account{Address: testAccount, Version: tt.version}, testChainID)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrInvalidAccount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.standard, domain.Standard)
			require.Equal(t, tt.legacyTxLayout, domain.LegacyTxLayout)
			require.Equal(t, testAccount, domain.VerifyingAccount)
		})
	}
}

func TestNestedDigest_BindsRequester(t *testing.T) {
	nested := types.Domain{ChainID: testChainID, VerifyingAccount: common.HexToAddress("0x0e57ed"), Standard: types.StandardEIP712}
	digest := crypto.Keccak256Hash([]byte("parent digest"))

	a, err := NestedDigest(common.HexToAddress("0x01"), nested, digest)
	require.NoError(t, err)
	b, err := NestedDigest(common.HexToAddress("0x02"), nested, digest)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	again, err := NestedDigest(common.HexToAddress("0x01"), nested, digest)
	require.NoError(t, err)
	require.Equal(t, a, again)

	// abi.encode(address, bytes32) wrapped as a SafeMessage in the nested domain
	payload := append(word(common.HexToAddress("0x01").Bytes()), digest.Bytes()...)
	expected, err := safeMessageHash(nested, payload)
	require.NoError(t, err)
	require.Equal(t, expected, a)
}
