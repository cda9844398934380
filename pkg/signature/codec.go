package signature

import (
	"fmt"
	"math/big"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

/*
Wire format

A blob is a record region followed by a trailing data region:

	records:  n × [32 bytes][32 bytes][1 byte]
	trailing: [32-byte length][nested blob] ... one entry per nested record

Direct record:  r ‖ s ‖ v, v ∈ {27, 28} for eth_sign and v ∈ {31, 32} for typed data.
Nested record:  offset ‖ signer ‖ 0x00. offset is big-endian and counted from the start
                of the record region; signer is the nested account, left-padded.

The record region ends where the first trailing entry begins, so the record count is
implied by the lowest nested offset (or by the blob length when nothing is nested).
Trailing entries appear in record order with no gaps, shared entries or leftover bytes,
so every set of contributions has exactly one encoding.
*/

const (
	// RecordLength is the size of one fixed record
	RecordLength = 65
	wordLength   = 32

	// NestedMarker is the v byte of a nested pointer record
	NestedMarker byte = 0

	// typedDataVOffset marks records produced on the structured-hash path
	typedDataVOffset byte = 4
)

// Encode lays out contributions in the order given. The aggregator is responsible for
// canonical ordering; Encode only serializes. Nested contributions must already carry
// their aggregated signatures.
func Encode(contributions ...*Contribution) ([]byte, error) {
	records := make([]byte, 0, len(contributions)*RecordLength)
	var trailing []byte
	recordRegion := len(contributions) * RecordLength

	for i, c := range contributions {
		if c == nil {
			return nil, fmt.Errorf("contribution %d is nil", i)
		}

		switch p := c.Payload.(type) {
		case *DirectSignature:
			record, err := encodeDirect(p)
			if err != nil {
				return nil, fmt.Errorf("contribution %d from %s: %w", i, c.Signer.Hex(), err)
			}
			records = append(records, record...)
		case *NestedSignature:
			if len(p.Signatures) == 0 {
				return nil, fmt.Errorf("contribution %d from %s: nested signatures have not been aggregated", i, c.Signer.Hex())
			}
			offset := uint64(recordRegion + len(trailing))
			records = append(records, math.U256Bytes(new(big.Int).SetUint64(offset))...)
			records = append(records, common.LeftPadBytes(c.Signer.Bytes(), wordLength)...)
			records = append(records, NestedMarker)

			trailing = append(trailing, math.U256Bytes(big.NewInt(int64(len(p.Signatures))))...)
			trailing = append(trailing, p.Signatures...)
		default:
			return nil, fmt.Errorf("contribution %d from %s: unsupported payload %T", i, c.Signer.Hex(), c.Payload)
		}
	}

	return append(records, trailing...), nil
}

func encodeDirect(d *DirectSignature) ([]byte, error) {
	v := d.Signature[64]
	if v != 27 && v != 28 {
		return nil, fmt.Errorf("%w: unsupported recovery byte %d", types.ErrMalformedSignature, v)
	}

	record := make([]byte, RecordLength)
	copy(record, d.Signature[:])
	switch d.Method {
	case MethodEthSign:
	case MethodTypedData:
		record[64] = v + typedDataVOffset
	default:
		return nil, fmt.Errorf("%w: unsupported signing %s", types.ErrMalformedSignature, d.Method)
	}
	return record, nil
}

// RecordCount returns how many fixed records sigs carries, validating that the record
// region is exactly count × 65 bytes and that the trailing region is canonical.
func RecordCount(sigs []byte) (int, error) {
	end := len(sigs)
	count := 0

	for pos := 0; pos < end; pos += RecordLength {
		if pos+RecordLength > len(sigs) {
			return 0, fmt.Errorf("%w: record %d truncated at byte %d of %d", types.ErrMalformedSignature, count, pos, len(sigs))
		}
		record := sigs[pos : pos+RecordLength]
		if record[64] == NestedMarker {
			offset, err := readOffset(record[:wordLength], len(sigs))
			if err != nil {
				return 0, fmt.Errorf("record %d: %w", count, err)
			}
			if offset < pos+RecordLength {
				return 0, fmt.Errorf("%w: record %d offset %d points into the record region", types.ErrMalformedSignature, count, offset)
			}
			if offset < end {
				end = offset
			}
		}
		count++
	}

	if count*RecordLength != end {
		return 0, fmt.Errorf("%w: record region is %d bytes, expected %d records × %d",
			types.ErrMalformedSignature, end, count, RecordLength)
	}
	if err := checkTrailing(sigs, count); err != nil {
		return 0, err
	}
	return count, nil
}

// checkTrailing walks nested records in order and requires each trailing entry to start
// where the previous one ended, with the last one ending at the end of sigs.
func checkTrailing(sigs []byte, count int) error {
	next := count * RecordLength
	for i := 0; i < count; i++ {
		record := sigs[i*RecordLength : (i+1)*RecordLength]
		if record[64] != NestedMarker {
			continue
		}
		offset := new(big.Int).SetBytes(record[:wordLength])
		if !offset.IsUint64() || offset.Uint64() != uint64(next) {
			return fmt.Errorf("%w: record %d offset %s, expected trailing entry at %d", types.ErrMalformedSignature, i, offset, next)
		}
		if next+wordLength > len(sigs) {
			return fmt.Errorf("%w: record %d length prefix at %d overruns %d bytes", types.ErrMalformedSignature, i, next, len(sigs))
		}
		length := new(big.Int).SetBytes(sigs[next : next+wordLength])
		dataStart := next + wordLength
		if !length.IsUint64() || length.Uint64() > uint64(len(sigs)-dataStart) {
			return fmt.Errorf("%w: record %d nested length %s overruns %d bytes", types.ErrMalformedSignature, i, length, len(sigs))
		}
		next = dataStart + int(length.Uint64())
	}
	if next != len(sigs) {
		return fmt.Errorf("%w: %d unused bytes after the last trailing entry", types.ErrMalformedSignature, len(sigs)-next)
	}
	return nil
}

// Decode parses the record at position. Direct signers are recovered from digest.
func Decode(sigs []byte, position int, digest types.Digest) (*Contribution, error) {
	count, err := RecordCount(sigs)
	if err != nil {
		return nil, err
	}
	return decodeRecord(sigs, position, count, digest)
}

// DecodeAll parses every record of sigs in order
func DecodeAll(sigs []byte, digest types.Digest) ([]*Contribution, error) {
	count, err := RecordCount(sigs)
	if err != nil {
		return nil, err
	}

	contributions := make([]*Contribution, 0, count)
	for i := 0; i < count; i++ {
		c, err := decodeRecord(sigs, i, count, digest)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, nil
}

func decodeRecord(sigs []byte, position int, count int, digest types.Digest) (*Contribution, error) {
	if position < 0 || position >= count {
		return nil, fmt.Errorf("%w: position %d outside %d records", types.ErrMalformedSignature, position, count)
	}

	start := position * RecordLength
	record := sigs[start : start+RecordLength]

	switch v := record[64]; {
	case v == NestedMarker:
		return decodeNested(sigs, record, position, count)
	case v == 27 || v == 28:
		return decodeDirect(record, v, MethodEthSign, digest)
	case v == 27+typedDataVOffset || v == 28+typedDataVOffset:
		return decodeDirect(record, v-typedDataVOffset, MethodTypedData, digest)
	default:
		return nil, fmt.Errorf("%w: record %d has unsupported recovery byte %d", types.ErrMalformedSignature, position, v)
	}
}

func decodeDirect(record []byte, v byte, method Method, digest types.Digest) (*Contribution, error) {
	ds := &DirectSignature{Method: method}
	copy(ds.Signature[:], record)
	ds.Signature[64] = v

	return NewDirectContribution(ds, digest)
}

func decodeNested(sigs []byte, record []byte, position int, count int) (*Contribution, error) {
	offset, err := readOffset(record[:wordLength], len(sigs))
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", position, err)
	}
	if offset < count*RecordLength {
		return nil, fmt.Errorf("%w: record %d offset %d points into the record region", types.ErrMalformedSignature, position, offset)
	}

	signerWord := record[wordLength : 2*wordLength]
	for _, b := range signerWord[:wordLength-common.AddressLength] {
		if b != 0 {
			return nil, fmt.Errorf("%w: record %d signer word is not a left-padded address", types.ErrMalformedSignature, position)
		}
	}
	signer := common.BytesToAddress(signerWord)

	if offset+wordLength > len(sigs) {
		return nil, fmt.Errorf("%w: record %d length prefix at %d overruns %d bytes", types.ErrMalformedSignature, position, offset, len(sigs))
	}
	length := new(big.Int).SetBytes(sigs[offset : offset+wordLength])
	dataStart := offset + wordLength
	if !length.IsUint64() || length.Uint64() > uint64(len(sigs)-dataStart) {
		return nil, fmt.Errorf("%w: record %d nested length %s overruns %d bytes", types.ErrMalformedSignature, position, length, len(sigs))
	}

	nested := make([]byte, length.Uint64())
	copy(nested, sigs[dataStart:])
	return NewNestedContribution(signer, nested), nil
}

// readOffset decodes a 32-byte big-endian offset and checks it lies inside the buffer
func readOffset(word []byte, size int) (int, error) {
	offset := new(big.Int).SetBytes(word)
	if !offset.IsUint64() || offset.Uint64() >= uint64(size) {
		return 0, fmt.Errorf("%w: offset %s outside %d-byte buffer", types.ErrMalformedSignature, offset, size)
	}
	return int(offset.Uint64()), nil
}
