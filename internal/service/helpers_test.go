package service

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/solana"
)

var testProgramID = solana.MustParsePubkey("MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA")

func testKey(b byte) solana.Pubkey {
	var pk solana.Pubkey
	pk[0] = b
	pk[31] = 1
	return pk
}

func kindData(kind comms.AccountKind) []byte {
	data := make([]byte, kind.DataSize())
	copy(data, kind.Discriminator())
	return data
}

// marginfiAccountData builds account data with the given group key and
// health cache values.
func marginfiAccountData(group solana.Pubkey, assets, liabilities uint64) []byte {
	data := kindData(comms.KindMarginfiAccount)
	copy(data[comms.MarginfiAccountGroupOffset:], group.Bytes())
	binary.LittleEndian.PutUint64(data[healthCacheAssetsOffset:], assets)
	binary.LittleEndian.PutUint64(data[healthCacheLiabilitiesOffset:], liabilities)
	return data
}

func bankDataWithOracle(oracle solana.Pubkey) []byte {
	data := kindData(comms.KindBank)
	copy(data[comms.BankOracleOffset:], oracle.Bytes())
	return data
}

func clockAccount(clock solana.Clock) solana.Account {
	return solana.Account{Data: clock.Serialize(), Slot: clock.Slot}
}

// fakeComms serves scripted ledger reads.
type fakeComms struct {
	mu sync.Mutex

	accounts        map[solana.Pubkey]solana.Account
	programAccounts []solana.KeyedAccount

	programCalls  int
	accountsCalls int
}

var _ comms.CommsClient = (*fakeComms)(nil)

func newFakeComms(clock solana.Clock) *fakeComms {
	return &fakeComms{
		accounts: map[solana.Pubkey]solana.Account{
			solana.ClockSysvar: clockAccount(clock),
		},
	}
}

func (f *fakeComms) GetAccount(_ context.Context, pubkey solana.Pubkey) (*solana.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[pubkey]; ok {
		copied := acc
		return &copied, nil
	}
	return nil, errors.New("account not found")
}

func (f *fakeComms) GetProgramAccounts(_ context.Context, _ solana.Pubkey) ([]solana.KeyedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programCalls++
	return f.programAccounts, nil
}

func (f *fakeComms) GetAccounts(_ context.Context, addresses []solana.Pubkey) ([]solana.KeyedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountsCalls++
	var out []solana.KeyedAccount
	for _, addr := range addresses {
		if acc, ok := f.accounts[addr]; ok {
			out = append(out, solana.KeyedAccount{Pubkey: addr, Account: acc})
		}
	}
	return out, nil
}

// fakeWS hands out scripted notification channels.
type fakeWS struct {
	programCh chan solana.AccountNotification
	accountCh chan solana.AccountNotification

	subscribeErr error
}

var _ solana.WSClient = (*fakeWS)(nil)

func newFakeWS() *fakeWS {
	return &fakeWS{
		programCh: make(chan solana.AccountNotification, 16),
		accountCh: make(chan solana.AccountNotification, 16),
	}
}

func (f *fakeWS) SubscribeProgram(_ context.Context, _ solana.Pubkey) (<-chan solana.AccountNotification, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.programCh, nil
}

func (f *fakeWS) SubscribeAccount(_ context.Context, _ solana.Pubkey) (<-chan solana.AccountNotification, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.accountCh, nil
}

func (f *fakeWS) Close() error { return nil }
