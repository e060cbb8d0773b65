package aof

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/klauspost/compress/zstd"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	snapMagic   = "MAPPYSNAP" // File format identifier
	snapVersion = 1           // Snapshot format version
)

// --------------------------------------------------------------------------
// Snapshot Writing
// --------------------------------------------------------------------------

// WriteSnapshot serializes an engine snapshot to w. The header stays
// uncompressed for sniffing; the body (parameters plus entries in slot
// order) is zstd-compressed. Serializing the same engine state twice
// yields byte-identical output.
func WriteSnapshot(w io.Writer, snap *maplet.Snapshot[[]byte]) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(snapMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapVersion)); err != nil {
		return err
	}

	// Compressed body
	zw, err := zstd.NewWriter(bw)
	if err != nil {
		return err
	}

	if err := writeSnapshotBody(zw, snap); err != nil {
		zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func writeSnapshotBody(w io.Writer, snap *maplet.Snapshot[[]byte]) error {
	// Engine rebuild parameters
	if err := binary.Write(w, binary.LittleEndian, snap.Capacity); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(snap.QuotientBits)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(snap.RemainderBits)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, snap.HasherSeed); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, snap.LastTimestamp); err != nil {
		return err
	}

	family := []byte(snap.HasherFamily)
	if err := binary.Write(w, binary.LittleEndian, uint8(len(family))); err != nil {
		return err
	}
	if _, err := w.Write(family); err != nil {
		return err
	}

	// Entries
	if err := binary.Write(w, binary.LittleEndian, uint64(len(snap.Entries))); err != nil {
		return err
	}
	for _, e := range snap.Entries {
		if err := binary.Write(w, binary.LittleEndian, e.Slot); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.Fingerprint); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return err
		}
		if _, err := w.Write(e.Value); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Snapshot Reading
// --------------------------------------------------------------------------

// ReadSnapshot deserializes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*maplet.Snapshot[[]byte], error) {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(snapMagic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if string(magicBytes) != snapMagic {
		return nil, fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if int(version) != snapVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapVersion)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return readSnapshotBody(zr)
}

func readSnapshotBody(r io.Reader) (*maplet.Snapshot[[]byte], error) {
	snap := &maplet.Snapshot[[]byte]{}

	if err := binary.Read(r, binary.LittleEndian, &snap.Capacity); err != nil {
		return nil, err
	}

	var qbits, rbits uint8
	if err := binary.Read(r, binary.LittleEndian, &qbits); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rbits); err != nil {
		return nil, err
	}
	snap.QuotientBits = uint(qbits)
	snap.RemainderBits = uint(rbits)

	if err := binary.Read(r, binary.LittleEndian, &snap.HasherSeed); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &snap.LastTimestamp); err != nil {
		return nil, err
	}

	var familyLen uint8
	if err := binary.Read(r, binary.LittleEndian, &familyLen); err != nil {
		return nil, err
	}
	family := make([]byte, familyLen)
	if _, err := io.ReadFull(r, family); err != nil {
		return nil, err
	}
	snap.HasherFamily = maplet.HasherFamily(family)

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	snap.Entries = make([]maplet.SnapshotEntry[[]byte], 0, count)
	for i := uint64(0); i < count; i++ {
		var e maplet.SnapshotEntry[[]byte]
		if err := binary.Read(r, binary.LittleEndian, &e.Slot); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.Fingerprint); err != nil {
			return nil, err
		}
		var valueLen uint32
		if err := binary.Read(r, binary.LittleEndian, &valueLen); err != nil {
			return nil, err
		}
		e.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(r, e.Value); err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, e)
	}
	return snap, nil
}
