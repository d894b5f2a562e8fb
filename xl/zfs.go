package xl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adnsv/xlbook/storezip"
)

// Storage receives the parts of a workbook. Paths are absolute part names
// such as "/xl/workbook.xml".
type Storage interface {
	WriteBlob(path string, blob []byte) error
}

// DirStorage writes each part as a loose file under Dir.
type DirStorage struct {
	Dir string
}

// ZipStorage writes workbook parts as stored entries of a ZIP archive,
// creating a standard .xlsx file.
type ZipStorage struct {
	z *storezip.Writer
}

func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{
		Dir: dir,
	}
}

// WriteBlob creates the parent directories of the part as needed.
func (ds *DirStorage) WriteBlob(path string, blob []byte) error {
	path = strings.TrimPrefix(path, "/")
	fn := filepath.Join(ds.Dir, filepath.FromSlash(path))
	err := os.MkdirAll(filepath.Dir(fn), 0777)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := os.WriteFile(fn, blob, 0666); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// NewZipStorage starts an archive on out. Close flushes the archive but
// does not close out.
func NewZipStorage(out io.Writer) (*ZipStorage, error) {
	z := storezip.NewWriter()
	if err := z.OpenWriter(out); err != nil {
		return nil, err
	}
	return &ZipStorage{z: z}, nil
}

// CreateZipStorage creates (or truncates) the file at path and returns a
// ZIP-based storage writing to it.
func CreateZipStorage(path string) (*ZipStorage, error) {
	z, err := storezip.Create(path)
	if err != nil {
		return nil, err
	}
	return &ZipStorage{z: z}, nil
}

// WriteBlob stores the part as an entry named without the leading slash.
func (zs *ZipStorage) WriteBlob(path string, blob []byte) error {
	path = strings.TrimPrefix(path, "/")
	return zs.z.AddFile(path, blob)
}

// Close writes the central directory. Without it the output is not a
// readable archive.
func (zs *ZipStorage) Close() error {
	return zs.z.Finalize()
}

// Abort releases the output without finalizing the archive.
func (zs *ZipStorage) Abort() error {
	return zs.z.Close()
}
