// Package storezip writes ZIP archives whose entries are stored without
// compression. Entry data goes to the output as soon as it is added; only
// the central directory is held in memory until Finalize.
package storezip

import (
	"bufio"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/adnsv/xlbook/internal/clock"
)

// ErrInvalidName reports an entry name that is empty or longer than the
// 16-bit name length field allows.
var ErrInvalidName = errors.New("invalid entry name")

type state int

const (
	stateUnopened state = iota
	stateOpen
	stateClosed
)

// Writer is a store-only ZIP writer. A Writer is not safe for concurrent use.
//
// The zero value is not ready; use NewWriter or Create. After Finalize the
// same Writer may be opened again for a new archive.
type Writer struct {
	Log zerolog.Logger

	state  state
	sink   *bufio.Writer
	closer io.Closer // nil when the caller owns the sink
	failed error

	names  map[string]struct{}
	dir    []byte
	offset uint32
	count  int
}

func NewWriter() *Writer {
	return &Writer{Log: zerolog.Nop()}
}

// Create returns a Writer opened on a newly created (or truncated) file.
func Create(path string) (*Writer, error) {
	w := NewWriter()
	if err := w.Open(path); err != nil {
		return nil, err
	}
	return w, nil
}

// Open creates the file at path and starts a new archive in it.
func (w *Writer) Open(path string) error {
	if w.state == stateOpen {
		return fmt.Errorf("%w: archive is already open", ErrPreconditionFailed)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: cannot create %s: %w", ErrIO, path, err)
	}
	w.start(f, f)
	w.Log.Debug().Str("path", path).Msg("archive opened")
	return nil
}

// OpenWriter starts a new archive on out. Finalize flushes but does not
// close out.
func (w *Writer) OpenWriter(out io.Writer) error {
	if w.state == stateOpen {
		return fmt.Errorf("%w: archive is already open", ErrPreconditionFailed)
	}
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrIO)
	}
	w.start(out, nil)
	return nil
}

func (w *Writer) start(out io.Writer, closer io.Closer) {
	w.state = stateOpen
	w.sink = bufio.NewWriter(out)
	w.closer = closer
	w.failed = nil
	w.names = map[string]struct{}{}
	w.dir = w.dir[:0]
	w.offset = 0
	w.count = 0
}

// Count returns the number of entries added since the archive was opened.
func (w *Writer) Count() int { return w.count }

// Offset returns the number of bytes written since the archive was opened.
func (w *Writer) Offset() uint32 { return w.offset }

func (w *Writer) ready() error {
	if w.state != stateOpen {
		return fmt.Errorf("%w: archive is not open", ErrPreconditionFailed)
	}
	if w.failed != nil {
		return fmt.Errorf("%w: output has failed: %v", ErrPreconditionFailed, w.failed)
	}
	return nil
}

// AddFile stores contents as a new entry. The local header and data are
// written immediately.
func (w *Writer) AddFile(name string, contents []byte) error {
	if err := w.ready(); err != nil {
		return err
	}
	if name == "" || len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if w.count >= math.MaxUint16 {
		return fmt.Errorf("%w: archive is limited to %d entries", ErrPreconditionFailed, math.MaxUint16)
	}
	need := uint64(w.offset) + localHeaderLen + uint64(len(name)) + uint64(len(contents))
	if need > math.MaxUint32 {
		return fmt.Errorf("%w: archive would exceed 4 GiB", ErrPreconditionFailed)
	}

	tm, dt := DOSTimeDate(clock.Now())
	e := entry{
		name:    name,
		dosTime: tm,
		dosDate: dt,
		crc32:   crc32.ChecksumIEEE(contents),
		size:    uint32(len(contents)),
		offset:  w.offset,
	}
	if !isASCII(name) && utf8.ValidString(name) {
		e.flags |= flagUTF8
	}

	if _, dup := w.names[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	w.names[name] = struct{}{}
	w.dir = e.appendDirHeader(w.dir)

	hdr := e.appendLocalHeader(make([]byte, 0, localHeaderLen+len(name)))
	if err := w.write(hdr); err != nil {
		return err
	}
	if err := w.write(contents); err != nil {
		return err
	}
	w.offset += uint32(len(hdr) + len(contents))
	w.count++

	w.Log.Debug().Str("name", name).Int("size", len(contents)).Uint32("crc32", e.crc32).Msg("entry stored")
	return nil
}

// Finalize writes the central directory and the end record, then flushes
// and closes the output. The Writer returns to a closed state even when
// the final writes fail.
func (w *Writer) Finalize() error {
	if err := w.ready(); err != nil {
		return err
	}
	if w.count == 0 {
		return fmt.Errorf("%w: archive has no entries", ErrPreconditionFailed)
	}
	if uint64(w.offset)+uint64(len(w.dir))+endRecordLen > math.MaxUint32 {
		return fmt.Errorf("%w: archive would exceed 4 GiB", ErrPreconditionFailed)
	}

	dirOffset := w.offset
	dirSize := uint32(len(w.dir))
	entries := w.count

	err := w.write(w.dir)
	if err == nil {
		err = w.write(appendEndRecord(nil, uint16(entries), dirSize, dirOffset))
	}
	if err == nil {
		err = w.flush()
	}
	if cerr := w.release(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	w.Log.Debug().Int("entries", entries).Uint32("dir_offset", dirOffset).Uint32("dir_size", dirSize).Msg("archive finalized")
	return nil
}

// Close abandons an open archive without writing the central directory and
// releases the output. It is a no-op when the archive is not open.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		return nil
	}
	return w.release()
}

func (w *Writer) release() error {
	var err error
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil {
			err = fmt.Errorf("%w: %w", ErrIO, cerr)
		}
	}
	w.state = stateClosed
	w.sink = nil
	w.closer = nil
	w.names = nil
	w.dir = w.dir[:0]
	w.offset = 0
	w.count = 0
	return err
}

func (w *Writer) write(b []byte) error {
	if _, err := w.sink.Write(b); err != nil {
		w.failed = err
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (w *Writer) flush() error {
	if err := w.sink.Flush(); err != nil {
		w.failed = err
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
