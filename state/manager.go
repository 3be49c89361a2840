package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bazaarchain/core/types"
	"bazaarchain/storage"
)

var (
	errNilRecord      = errors.New("state: nil record")
	errOrderImmutable = errors.New("state: order records cannot be overwritten")
)

// Manager provides the persistent state surface consumed by the native
// engines: accounts, marketplace records, secondary indexes and the
// monotonic identifier counters. Records are RLP encoded under keccak-hashed
// keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(parts ...[]byte) []byte {
	joined := make([]byte, 0, 64)
	for _, part := range parts {
		joined = append(joined, part...)
	}
	return ethcrypto.Keccak256(joined)
}

func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		// Deleted records persist as empty values.
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) putRecord(key []byte, in interface{}) error {
	encoded, err := rlp.EncodeToBytes(in)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) deleteRecord(key []byte) error {
	// The Database interface has no delete; an empty value marks absence and
	// getRecord treats it as missing.
	return m.db.Put(key, nil)
}

func (m *Manager) hasRecord(key []byte) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil || !ok {
		return false, err
	}
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// nextCounter increments and persists the named counter, returning the new
// value. Identifiers start at 1 so zero always means "unset".
func (m *Manager) nextCounter(name []byte) (uint64, error) {
	key := kvKey(counterPrefix, name)
	var current uint64
	if _, err := m.getRecord(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := m.putRecord(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

type storedAccount struct {
	Nonce      uint64
	BalanceBZR *big.Int
	BalanceLBZ *big.Int
	Stake      *big.Int
	Username   string
}

// GetAccount loads the account for addr, returning a zeroed record when none
// exists yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	key := kvKey(accountPrefix, addr)
	stored := new(storedAccount)
	ok, err := m.getRecord(key, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.EnsureBalances(nil), nil
	}
	return &types.Account{
		Nonce:      stored.Nonce,
		BalanceBZR: fromBig(stored.BalanceBZR),
		BalanceLBZ: fromBig(stored.BalanceLBZ),
		Stake:      fromBig(stored.Stake),
		Username:   stored.Username,
	}, nil
}

func fromBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func toBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	account = types.EnsureBalances(account)
	key := kvKey(accountPrefix, addr)
	return m.putRecord(key, &storedAccount{
		Nonce:      account.Nonce,
		BalanceBZR: toBig(account.BalanceBZR),
		BalanceLBZ: toBig(account.BalanceLBZ),
		Stake:      toBig(account.Stake),
		Username:   account.Username,
	})
}

// moduleVault derives the deterministic custody address for a module/token
// pair. The preimage space cannot collide with user keys.
func moduleVault(module, token string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("bazaarchain/vault/"), []byte(module), []byte{'/'}, []byte(token))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
