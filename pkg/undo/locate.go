package undo

import (
	"fmt"
	"os"
	"path/filepath"

	"blocklens/pkg/utils"
)

// Locate discovers the rev*.dat sequence alongside a block-file directory,
// mirroring pkg/blockfile.Locate's naming-convention detection exactly
// (rev files always share the parent directory and index numbering of
// their corresponding blk files). Unlike blockfile.Locate this reads each
// file into memory outright rather than mmap'ing it: undo files are read
// once, start to finish, by the reconcile callback, so a mapping step
// buys nothing over a single os.ReadFile.
// The returned map is keyed by each file's 0-based position in the
// discovered sequence (rev00000.dat under the modern "blocks/" layout and
// rev0001.dat under the legacy flat layout are both 0), the same numbering
// the engine gives BlockRef.FileID over the files pkg/blockfile.Locate
// returns, so a BlockRef.FileID indexes directly into it.
func Locate(dataDir string) (map[int][]byte, error) {
	blocksDir := filepath.Join(dataDir, "blocks")
	info, statErr := os.Stat(blocksDir)
	modern := statErr == nil && info.IsDir()

	var fmtStr string
	var startID int
	var base string
	if modern {
		fmtStr = "rev%05d.dat"
		startID = 0
		base = blocksDir
	} else {
		fmtStr = "rev%04d.dat"
		startID = 1
		base = dataDir
	}

	key := loadXORKey(base)

	files := make(map[int][]byte)
	for id := startID; ; id++ {
		name := filepath.Join(base, fmt.Sprintf(fmtStr, id))
		data, err := os.ReadFile(name)
		if err != nil {
			if id == startID {
				return nil, fmt.Errorf("undo: no undo files discovered under %s: %w", dataDir, err)
			}
			break
		}
		files[id-startID] = utils.XORDecode(data, key)
	}
	return files, nil
}

// loadXORKey reads the optional blocks/xor.dat obfuscation key Bitcoin
// Core writes starting at v28.0. Its absence is normal for older data
// directories, not an error.
func loadXORKey(blocksDir string) []byte {
	data, err := os.ReadFile(filepath.Join(blocksDir, "xor.dat"))
	if err != nil {
		return nil
	}
	return data
}
