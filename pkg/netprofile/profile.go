// Package netprofile supplies the runtime-selected network constants the
// original C++ parser baked in at compile time via preprocessor
// conditionals (one binary per chain). Design Note §9 of the spec asks for
// a single NetworkProfile record injected at startup instead.
package netprofile

import "blocklens/pkg/txhash"

// Profile describes everything the engine needs to know about one chain's
// on-disk format.
type Profile struct {
	// Name identifies the profile for --network flags and logging.
	Name string

	// Magic is the 4-byte little-endian record delimiter prefixing every
	// block record on disk.
	Magic uint32

	// DataSubdirName is the directory under $HOME holding the node's data
	// (e.g. ".bitcoin", ".litecoin", ".darkcoin").
	DataSubdirName string

	// HeaderHash computes a block's identifying hash over its serialized
	// header bytes. Bitcoin-derived chains use double-SHA-256; a handful
	// of forks (Darkcoin/Dash-era X11) substitute an alternative function.
	HeaderHash txhash.HeaderHasher

	// ExtraHeaderBytes is the length of any per-network fields appended
	// after the fixed 80-byte version/prev/merkle/time/bits/nonce header
	// (e.g. Protoshares' two extra birthday fields, 8 bytes total).
	ExtraHeaderBytes int

	// HeaderHashSize is how many header bytes are fed to HeaderHash.
	//
	// The original source computes headerSize = 88 inside a
	// "#if defined(PROTOSHARES)" block that shadows the outer
	// headerSize = 80 only within that lexical scope — it is never
	// assigned back out, so whether Protoshares blocks are actually
	// hashed at 88 bytes or the shadowed variable was a no-op bug is
	// ambiguous in the original. This field is deliberately left
	// configurable rather than guessed; see DESIGN.md for the resolution
	// adopted here.
	HeaderHashSize int
}

// Bitcoin is the default profile: double-SHA-256 header hash, no extra
// header fields, 80-byte header.
var Bitcoin = Profile{
	Name:             "bitcoin",
	Magic:            0xd9b4bef9,
	DataSubdirName:   ".bitcoin",
	HeaderHash:       txhash.DoubleSHA256,
	ExtraHeaderBytes: 0,
	HeaderHashSize:   80,
}

// Litecoin shares Bitcoin's header layout and hash function; only the
// magic and data directory differ.
var Litecoin = Profile{
	Name:             "litecoin",
	Magic:            0xdbb6c0fb,
	DataSubdirName:   ".litecoin",
	HeaderHash:       txhash.DoubleSHA256,
	ExtraHeaderBytes: 0,
	HeaderHashSize:   80,
}

// Fedoracoin is a Dogecoin-family fork kept from the original source's
// FEDORACOIN conditional.
var Fedoracoin = Profile{
	Name:             "fedoracoin",
	Magic:            0xdead1337,
	DataSubdirName:   ".fedoracoin",
	HeaderHash:       txhash.DoubleSHA256,
	ExtraHeaderBytes: 0,
	HeaderHashSize:   80,
}

// Darkcoin (Dash's predecessor) hashes headers with the X11 chain instead
// of double-SHA-256 — the original's "#else h9(...)" branch.
var Darkcoin = Profile{
	Name:             "darkcoin",
	Magic:            0xbd6b0cbf,
	DataSubdirName:   ".darkcoin",
	HeaderHash:       txhash.X11,
	ExtraHeaderBytes: 0,
	HeaderHashSize:   80,
}

// Protoshares carries two extra 32-bit "birthday" fields after the
// standard header. HeaderHashSize is left at 80 by default — see the
// field doc comment and DESIGN.md for why 88 is not assumed.
var Protoshares = Profile{
	Name:             "protoshares",
	Magic:            0xd9b5bdf9,
	DataSubdirName:   ".protoshares",
	HeaderHash:       txhash.DoubleSHA256,
	ExtraHeaderBytes: 8,
	HeaderHashSize:   80,
}

// Registry lists every built-in profile by name, for config/CLI lookup.
var Registry = map[string]*Profile{
	Bitcoin.Name:     &Bitcoin,
	Litecoin.Name:    &Litecoin,
	Fedoracoin.Name:  &Fedoracoin,
	Darkcoin.Name:    &Darkcoin,
	Protoshares.Name: &Protoshares,
}

// Lookup returns the named profile, or nil if unknown.
func Lookup(name string) *Profile {
	return Registry[name]
}
