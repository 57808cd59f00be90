package storage

import (
	"fmt"

	"github.com/chrissnell/autocal/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeRecord serializes a record for a payload column
func EncodeRecord(rec types.EventRecord) ([]byte, error) {
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", rec.ID, err)
	}
	return b, nil
}

// DecodeRecord is the inverse of EncodeRecord
func DecodeRecord(b []byte) (types.EventRecord, error) {
	var rec types.EventRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return types.EventRecord{}, fmt.Errorf("decode event: %w", err)
	}
	return rec, nil
}
