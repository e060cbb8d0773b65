package aof

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/mappy/lib/maplet"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	logMagic   = "MAPPYAOF\x00" // File format identifier
	logVersion = 1              // Log format version
)

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// Writer appends mutation records to a log stream. It is not safe for
// concurrent use; the persistent store funnels all records through one
// goroutine.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter starts a fresh log on w by writing the header.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(logMagic); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(logVersion)); err != nil {
		return nil, err
	}

	return &Writer{bw: bw}, nil
}

// NewAppendWriter continues an existing log (the header is already on
// disk) on w.
func NewAppendWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 1024*1024)}
}

// Append writes one record.
func (w *Writer) Append(rec *maplet.Record[[]byte]) error {
	if err := binary.Write(w.bw, binary.LittleEndian, uint8(rec.Op)); err != nil {
		return err
	}

	var hasValue uint8
	if rec.HasValue {
		hasValue = 1
	}
	if err := binary.Write(w.bw, binary.LittleEndian, hasValue); err != nil {
		return err
	}

	if err := binary.Write(w.bw, binary.LittleEndian, rec.Fingerprint); err != nil {
		return err
	}

	if err := binary.Write(w.bw, binary.LittleEndian, rec.Timestamp); err != nil {
		return err
	}

	if err := binary.Write(w.bw, binary.LittleEndian, uint32(len(rec.Value))); err != nil {
		return err
	}
	if _, err := w.bw.Write(rec.Value); err != nil {
		return err
	}

	return nil
}

// Flush pushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// Replay reads a log and calls apply for every record, in order. It
// returns the number of records applied. A truncated trailing record (a
// crash mid-append) ends the replay without error; any other corruption
// is reported.
func Replay(r io.Reader, apply func(rec *maplet.Record[[]byte]) error) (int, error) {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(logMagic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return 0, fmt.Errorf("invalid log: %w", err)
	}
	if string(magicBytes) != logMagic {
		return 0, fmt.Errorf("invalid log format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if int(version) != logVersion {
		return 0, fmt.Errorf("unsupported log version: %d (expected %d)", version, logVersion)
	}

	applied := 0
	for {
		rec, err := readRecord(br)
		if err == io.EOF {
			return applied, nil
		}
		if err == io.ErrUnexpectedEOF {
			// torn tail record from an interrupted append
			return applied, nil
		}
		if err != nil {
			return applied, err
		}

		if err := apply(rec); err != nil {
			return applied, err
		}
		applied++
	}
}

// readRecord reads one record frame. io.EOF means a clean end before the
// frame started; io.ErrUnexpectedEOF a truncation inside the frame.
func readRecord(br *bufio.Reader) (*maplet.Record[[]byte], error) {
	var op uint8
	if err := binary.Read(br, binary.LittleEndian, &op); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	var hasValue uint8
	if err := binary.Read(br, binary.LittleEndian, &hasValue); err != nil {
		return nil, truncated(err)
	}

	var fingerprint uint64
	if err := binary.Read(br, binary.LittleEndian, &fingerprint); err != nil {
		return nil, truncated(err)
	}

	var timestamp uint64
	if err := binary.Read(br, binary.LittleEndian, &timestamp); err != nil {
		return nil, truncated(err)
	}

	var valueLen uint32
	if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
		return nil, truncated(err)
	}

	value := make([]byte, valueLen)
	if _, err := io.ReadFull(br, value); err != nil {
		return nil, truncated(err)
	}

	return &maplet.Record[[]byte]{
		Op:          maplet.OpCode(op),
		Fingerprint: fingerprint,
		Value:       value,
		HasValue:    hasValue != 0,
		Timestamp:   timestamp,
	}, nil
}

// truncated maps mid-frame EOFs to io.ErrUnexpectedEOF
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
