package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// RLEName is the encoding tag carried next to RLE payloads on the wire.
const RLEName = "RLE_U16_B64"

// MaxDecodedLen caps DecodeRLE output so a corrupt run length cannot exhaust memory.
const MaxDecodedLen = 1 << 24

// EncodeRLE encodes palette ids as base64 of uvarint (id, run) pairs.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	put := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}

	for i := 0; i < len(ids); {
		id := ids[i]
		j := i + 1
		for j < len(ids) && ids[j] == id {
			j++
		}
		put(uint64(id))
		put(uint64(j - i))
		i = j
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("rle base64: %w", err)
	}
	var out []uint16
	next := func(at int) (uint64, int, error) {
		v, n := binary.Uvarint(raw[at:])
		if n <= 0 {
			return 0, 0, fmt.Errorf("bad varint at %d", at)
		}
		return v, at + n, nil
	}
	for i := 0; i < len(raw); {
		id, j, err := next(i)
		if err != nil {
			return nil, err
		}
		run, k, err := next(j)
		if err != nil {
			return nil, err
		}
		i = k
		if id > 0xFFFF {
			return nil, fmt.Errorf("palette id too large: %d", id)
		}
		if run == 0 || uint64(len(out))+run > MaxDecodedLen {
			return nil, fmt.Errorf("bad run length %d at %d", run, j)
		}
		for n := uint64(0); n < run; n++ {
			out = append(out, uint16(id))
		}
	}
	return out, nil
}
