// Package blockfile enumerates the block-file sequence under a node's data
// directory and memory-maps each file for the engine's later passes.
package blockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"blocklens/pkg/engine"
)

// File is one discovered, memory-mapped block file.
type File struct {
	ID   int
	Name string
	Size int64
	data []byte
	fd   int
}

// Data returns the file's full memory-mapped contents.
func (f *File) Data() []byte { return f.data }

// Slice returns the mapped bytes in [offset, offset+size).
func (f *File) Slice(offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > int64(len(f.data)) {
		return nil, fmt.Errorf("blockfile: slice [%d:%d] out of range for %s (len %d)", offset, offset+size, f.Name, len(f.data))
	}
	return f.data[offset : offset+size], nil
}

// Locate discovers the block-file sequence under dataDir, preferring the
// modern "blocks/blk%05d.dat" (starting at 0) naming convention when the
// "blocks" subdirectory exists, and falling back to the legacy
// "blk%04d.dat" (starting at 1) convention otherwise. Enumeration stops at
// the first index that cannot be opened; a failure on the very first index
// is fatal, since it means the data directory is unusable.
func Locate(dataDir string) ([]*File, error) {
	blocksDir := filepath.Join(dataDir, "blocks")
	info, statErr := os.Stat(blocksDir)
	modern := statErr == nil && info.IsDir()

	var fmtStr string
	var startID int
	var base string
	if modern {
		fmtStr = "blk%05d.dat"
		startID = 0
		base = blocksDir
	} else {
		fmtStr = "blk%04d.dat"
		startID = 1
		base = dataDir
	}

	var files []*File
	for id := startID; ; id++ {
		name := filepath.Join(base, fmt.Sprintf(fmtStr, id))
		f, err := openAndMap(id, name)
		if err != nil {
			if id == startID {
				return nil, fmt.Errorf("blockfile: data directory unusable, failed to open first block file %s: %w", name, err)
			}
			break
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("blockfile: no block files discovered under %s", dataDir)
	}
	return files, nil
}

func openAndMap(id int, name string) (*File, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	size := st.Size()

	fd := int(fh.Fd())
	if size == 0 {
		return &File{ID: id, Name: name, Size: 0, data: nil, fd: -1}, nil
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", name, err)
	}

	if err := unix.Fadvise(fd, 0, size, unix.FADV_NOREUSE); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("posix_fadvise(NOREUSE) rejected, continuing")
	}

	return &File{ID: id, Name: name, Size: size, data: data}, nil
}

// EngineFiles converts discovered, mapped block files into the plain
// name/bytes pairs pkg/engine.New expects. The engine only ever reads
// from these buffers, so handing over the mmap'd slice directly (rather
// than copying) is safe as long as files stay mapped for the engine's
// lifetime — the caller is responsible for calling Close after Run
// returns.
func EngineFiles(files []*File) []engine.File {
	out := make([]engine.File, len(files))
	for i, f := range files {
		out[i] = engine.File{Name: f.Name, Data: f.data}
	}
	return out
}

// Close unmaps every file's mapping. It is best-effort: the process is
// exiting either way, so failures are logged, not returned.
func Close(files []*File) {
	for _, f := range files {
		if f.data == nil {
			continue
		}
		if err := unix.Munmap(f.data); err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("failed to munmap block file")
		}
	}
}
