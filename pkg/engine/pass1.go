package engine

import (
	"blocklens/pkg/bytescan"
)

// pass1BuildHeaders reads every block file sequentially from offset 0,
// verifying the magic, hashing the first profile.HeaderHashSize bytes of
// each header (80 + ExtraHeaderBytes when that field is 0), and
// allocating a block record with a speculative parent link whenever the
// parent has already been seen (spec §4.3).
func (e *Engine) pass1BuildHeaders() (int, error) {
	nbBlocks := 0

	for fileID, f := range e.files {
		data := f.Data
		r := bytescan.New(data)

		for {
			if r.Len() < 8 {
				break // trailing padding shorter than a record header
			}

			magic, err := r.U32()
			if err != nil {
				break
			}
			if magic != e.profile.Magic {
				// Trailing zero padding (or any non-magic byte) ends this
				// file's scan; it is not an error (spec §4.3 step 1).
				break
			}

			size, err := r.U32()
			if err != nil {
				return nbBlocks, r.Truncated(err)
			}

			payloadStart := r.Pos()
			payloadEnd := payloadStart + int(size)
			if payloadEnd > len(data) {
				return nbBlocks, r.Truncated(errShortPayload)
			}

			headerSize := 80 + e.profile.ExtraHeaderBytes
			if e.profile.HeaderHashSize > 0 {
				headerSize = e.profile.HeaderHashSize
			}
			if payloadStart+headerSize > len(data) {
				return nbBlocks, r.Truncated(errShortPayload)
			}
			header := data[payloadStart : payloadStart+headerSize]

			var prevHash Hash256
			copy(prevHash[:], header[4:36])

			hash := e.profile.HeaderHash(header)
			var headerHash Hash256 = hash

			idx := e.blocks.alloc()
			rec := e.blocks.get(idx)
			rec.headerHash = headerHash
			rec.fileID = fileID
			rec.offset = int64(payloadStart)
			rec.size = int64(size)
			rec.height = -1
			rec.prev = noIndex
			rec.next = noIndex

			if prevIdx, ok := e.blockIndex[prevHash]; ok {
				rec.prev = prevIdx
			}

			// Duplicate header hashes are not expected for valid chain
			// data; when observed, the later insertion wins.
			e.blockIndex[headerHash] = idx

			r.Seek(payloadEnd)
			nbBlocks++
		}
	}

	return nbBlocks, nil
}
