package solana

import "github.com/mr-tron/base58"

// Account is a Solana account's on-chain state as returned by the RPC node.
type Account struct {
	Lamports   uint64
	Owner      Pubkey
	Data       []byte
	Executable bool
	RentEpoch  uint64
	// Slot is the context slot at which the account was observed.
	Slot uint64
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Pubkey  Pubkey
	Account Account
}

// Filter is a getProgramAccounts server-side filter. Exactly one of the
// fields is set.
type Filter struct {
	DataSize *uint64 `json:"dataSize,omitempty"`
	Memcmp   *Memcmp `json:"memcmp,omitempty"`
}

// Memcmp matches raw bytes at a fixed offset within account data.
type Memcmp struct {
	Offset uint64 `json:"offset"`
	Bytes  string `json:"bytes"` // base58-encoded
}

// DataSizeFilter matches accounts whose data is exactly size bytes long.
func DataSizeFilter(size uint64) Filter {
	return Filter{DataSize: &size}
}

// MemcmpFilter matches accounts whose data contains raw at offset.
func MemcmpFilter(offset uint64, raw []byte) Filter {
	return Filter{Memcmp: &Memcmp{Offset: offset, Bytes: base58.Encode(raw)}}
}
