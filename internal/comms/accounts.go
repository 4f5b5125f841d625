package comms

import "marginfi-liquidator/internal/solana"

// Byte layout constants for marginfi program accounts.
const (
	AnchorDiscriminatorLen = 8

	// GroupDataLen, BankDataLen and MarginfiAccountDataLen include the
	// 8-byte anchor discriminator.
	GroupDataLen           = 1064
	BankDataLen            = 1864
	MarginfiAccountDataLen = 2312

	// MarginfiAccountGroupOffset is where the owning group key sits inside
	// a marginfi account's data.
	MarginfiAccountGroupOffset = AnchorDiscriminatorLen

	// MarginfiAccountAuthorityOffset is where the owner authority key sits.
	// The prefix partition fallback anchors its filter here.
	MarginfiAccountAuthorityOffset = AnchorDiscriminatorLen + solana.PubkeyLen

	// BankOracleOffset is where a bank's primary oracle key sits inside its
	// config block.
	BankOracleOffset = 104
)

// AccountKind identifies the semantic type of a marginfi program account.
type AccountKind int

const (
	KindGroup AccountKind = iota
	KindBank
	KindMarginfiAccount
)

// Anchor account discriminators: the first 8 bytes of
// sha256("account:<Name>").
var (
	groupDiscriminator           = []byte{182, 23, 173, 240, 151, 206, 182, 67}
	bankDiscriminator            = []byte{142, 49, 166, 242, 50, 66, 97, 188}
	marginfiAccountDiscriminator = []byte{67, 178, 130, 109, 126, 114, 28, 42}
)

// Filters returns the server-side filters selecting this kind: an exact
// data-size match plus the discriminator at offset zero.
func (k AccountKind) Filters() []solana.Filter {
	return []solana.Filter{
		solana.DataSizeFilter(k.DataSize()),
		solana.MemcmpFilter(0, k.Discriminator()),
	}
}

// DataSize returns the exact account data length for this kind.
func (k AccountKind) DataSize() uint64 {
	switch k {
	case KindGroup:
		return GroupDataLen
	case KindBank:
		return BankDataLen
	default:
		return MarginfiAccountDataLen
	}
}

// Discriminator returns the kind's 8-byte anchor discriminator.
func (k AccountKind) Discriminator() []byte {
	switch k {
	case KindGroup:
		return groupDiscriminator
	case KindBank:
		return bankDiscriminator
	default:
		return marginfiAccountDiscriminator
	}
}

func (k AccountKind) String() string {
	switch k {
	case KindGroup:
		return "MarginfiGroup"
	case KindBank:
		return "Bank"
	default:
		return "MarginfiAccount"
	}
}

// KindForData classifies account data by its discriminator. The second
// return value is false when the data matches no known kind.
func KindForData(data []byte) (AccountKind, bool) {
	if len(data) < AnchorDiscriminatorLen {
		return 0, false
	}
	for _, kind := range []AccountKind{KindGroup, KindBank, KindMarginfiAccount} {
		if matchesDiscriminator(data, kind.Discriminator()) && uint64(len(data)) == kind.DataSize() {
			return kind, true
		}
	}
	return 0, false
}

func matchesDiscriminator(data, disc []byte) bool {
	for i := range disc {
		if data[i] != disc[i] {
			return false
		}
	}
	return true
}

// GroupKey extracts the owning group address from marginfi account data.
func GroupKey(data []byte) (solana.Pubkey, bool) {
	if len(data) < MarginfiAccountGroupOffset+solana.PubkeyLen {
		return solana.Pubkey{}, false
	}
	pk, err := solana.PubkeyFromBytes(data[MarginfiAccountGroupOffset : MarginfiAccountGroupOffset+solana.PubkeyLen])
	if err != nil {
		return solana.Pubkey{}, false
	}
	return pk, true
}

// OracleKey extracts the primary oracle address from bank data. The second
// return value is false when the bank carries no oracle.
func OracleKey(data []byte) (solana.Pubkey, bool) {
	if len(data) < BankOracleOffset+solana.PubkeyLen {
		return solana.Pubkey{}, false
	}
	pk, err := solana.PubkeyFromBytes(data[BankOracleOffset : BankOracleOffset+solana.PubkeyLen])
	if err != nil || pk.IsZero() {
		return solana.Pubkey{}, false
	}
	return pk, true
}

// AuthorityKey extracts the owner authority address from marginfi account data.
func AuthorityKey(data []byte) (solana.Pubkey, bool) {
	if len(data) < MarginfiAccountAuthorityOffset+solana.PubkeyLen {
		return solana.Pubkey{}, false
	}
	pk, err := solana.PubkeyFromBytes(data[MarginfiAccountAuthorityOffset : MarginfiAccountAuthorityOffset+solana.PubkeyLen])
	if err != nil {
		return solana.Pubkey{}, false
	}
	return pk, true
}
