package stores

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

const (
	recordVersionV1 = 1
	recordSizeV1    = 1 + 4 + 8 + 8 + 8 + 4 + 8
)

var errInvalidRecord = errors.New("invalid counter record")

// encodeRecord layout (big-endian):
// version(1) attempts(4) windowStart(8) windowSize(8) lockedUntil(8) violations(4) touched(8).
// Timestamps are unix nanoseconds; 0 means unset.
func encodeRecord(rec rate.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(recordSizeV1)

	buf.WriteByte(recordVersionV1)
	fields := []any{
		int32(rec.Attempts),
		unixNano(rec.WindowStartedAt),
		int64(rec.WindowSize),
		unixNano(rec.LockedUntil),
		int32(rec.Violations),
		unixNano(rec.TouchedAt),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (rate.Record, error) {
	if len(data) != recordSizeV1 || data[0] != recordVersionV1 {
		return rate.Record{}, errInvalidRecord
	}

	reader := bytes.NewReader(data[1:])
	var (
		attempts, violations              int32
		windowStart, windowSize, lockedAt int64
		touched                           int64
	)
	for _, f := range []any{&attempts, &windowStart, &windowSize, &lockedAt, &violations, &touched} {
		if err := binary.Read(reader, binary.BigEndian, f); err != nil {
			return rate.Record{}, err
		}
	}

	return rate.Record{
		Attempts:        int(attempts),
		WindowStartedAt: fromUnixNano(windowStart),
		WindowSize:      time.Duration(windowSize),
		LockedUntil:     fromUnixNano(lockedAt),
		Violations:      int(violations),
		TouchedAt:       fromUnixNano(touched),
	}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
