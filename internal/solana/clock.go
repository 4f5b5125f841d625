package solana

import (
	"encoding/binary"
	"fmt"
)

// clockDataLen is the serialized size of the clock sysvar.
const clockDataLen = 40

// Clock is the ledger's logical time marker, read from the clock sysvar.
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

// ParseClock decodes the clock sysvar account data. The layout is five
// little-endian 64-bit fields.
func ParseClock(data []byte) (Clock, error) {
	if len(data) < clockDataLen {
		return Clock{}, fmt.Errorf("clock sysvar: expected %d bytes, got %d", clockDataLen, len(data))
	}
	return Clock{
		Slot:                binary.LittleEndian.Uint64(data[0:8]),
		EpochStartTimestamp: int64(binary.LittleEndian.Uint64(data[8:16])),
		Epoch:               binary.LittleEndian.Uint64(data[16:24]),
		LeaderScheduleEpoch: binary.LittleEndian.Uint64(data[24:32]),
		UnixTimestamp:       int64(binary.LittleEndian.Uint64(data[32:40])),
	}, nil
}

// Serialize encodes the clock in sysvar layout.
func (c Clock) Serialize() []byte {
	out := make([]byte, clockDataLen)
	binary.LittleEndian.PutUint64(out[0:8], c.Slot)
	binary.LittleEndian.PutUint64(out[8:16], uint64(c.EpochStartTimestamp))
	binary.LittleEndian.PutUint64(out[16:24], c.Epoch)
	binary.LittleEndian.PutUint64(out[24:32], c.LeaderScheduleEpoch)
	binary.LittleEndian.PutUint64(out[32:40], uint64(c.UnixTimestamp))
	return out
}
