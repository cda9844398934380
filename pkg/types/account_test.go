package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAccount_Validate(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")
	self := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name    string
		account *Account
		wantErr bool
	}{
		{"valid", &Account{Address: self, Owners: []common.Address{a, b}, Threshold: 2}, false},
		{"self owner allowed", &Account{Address: self, Owners: []common.Address{self, a}, Threshold: 1}, false},
		{"nil", nil, true},
		{"empty address", &Account{Owners: []common.Address{a}, Threshold: 1}, true},
		{"no owners", &Account{Address: self, Threshold: 1}, true},
		{"zero threshold", &Account{Address: self, Owners: []common.Address{a}, Threshold: 0}, true},
		{"threshold above owners", &Account{Address: self, Owners: []common.Address{a}, Threshold: 2}, true},
		{"duplicate owner", &Account{Address: self, Owners: []common.Address{a, a}, Threshold: 1}, true},
		{"zero owner", &Account{Address: self, Owners: []common.Address{{}}, Threshold: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAccount)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAccount_CopyIsIndependent(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	orig := &Account{Address: common.HexToAddress("0xaa"), Owners: []common.Address{a}, Threshold: 1, Version: "1.4.1"}

	cp := orig.Copy()
	cp.Owners[0] = common.HexToAddress("0x02")

	require.Equal(t, a, orig.Owners[0])
	require.True(t, orig.IsOwner(a))
	require.False(t, orig.IsOwner(common.HexToAddress("0x02")))
}

func TestCompareAddresses(t *testing.T) {
	low := common.HexToAddress("0x0000000000000000000000000000000000000001")
	high := common.HexToAddress("0x1000000000000000000000000000000000000000")

	require.Equal(t, -1, CompareAddresses(low, high))
	require.Equal(t, 1, CompareAddresses(high, low))
	require.Equal(t, 0, CompareAddresses(low, low))
}

func TestAction_Validate(t *testing.T) {
	t.Run("transaction", func(t *testing.T) {
		require.NoError(t, NewTransactionAction(&Transaction{}).Validate())
	})
	t.Run("raw message", func(t *testing.T) {
		require.NoError(t, NewRawMessageAction([]byte("hello")).Validate())
	})
	t.Run("kind without payload", func(t *testing.T) {
		err := (&Action{Kind: ActionKindTransaction}).Validate()
		require.ErrorIs(t, err, ErrInvalidAction)
	})
	t.Run("no sniffing of payloads", func(t *testing.T) {
		err := (&Action{Kind: ActionKindMessage, Transaction: &Transaction{}}).Validate()
		require.ErrorIs(t, err, ErrInvalidAction)
	})
	t.Run("unknown operation", func(t *testing.T) {
		err := NewTransactionAction(&Transaction{Operation: Operation(2)}).Validate()
		require.ErrorIs(t, err, ErrInvalidAction)
	})
	t.Run("typed without payload", func(t *testing.T) {
		err := (&Action{Kind: ActionKindMessage, Message: &Message{Kind: MessageKindTyped}}).Validate()
		require.ErrorIs(t, err, ErrInvalidAction)
	})
}
