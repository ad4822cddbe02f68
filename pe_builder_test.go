package rulesmith

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// peSpec describes a synthetic PE image assembled by buildPE. Defaults
// produce a small, valid PE32 with one .rsrc section.
type peSpec struct {
	plus       bool // PE32+ instead of PE32
	machine    uint16
	timestamp  uint32
	chars      uint16
	entryPoint uint32
	checksum   uint32
	imageBase  uint64
	subsystem  uint16
	resources  []byte // raw resource directory blob; nil omits the directory
}

func defaultPESpec() peSpec {
	return peSpec{
		machine:    0x14c,
		timestamp:  0x5f000000,
		chars:      0x0102,
		entryPoint: 0x1000,
		checksum:   0xbeef,
		imageBase:  0x400000,
		subsystem:  3,
	}
}

const (
	peHeaderOff  = 0x80
	sectionRVA   = 0x1000
	sectionRaw   = 0x200
	optSize32    = 224
	optSize64    = 240
	numDirs      = 16
	coffHdrSize  = 20
	sectHdrSize  = 40
	alignSection = 0x1000
	alignFile    = 0x200
)

// buildPE assembles a minimal PE image debug/pe can open: DOS stub,
// COFF header, full optional header with 16 data directories, and one
// .rsrc section holding the resource blob.
func buildPE(spec peSpec) []byte {
	optSize := optSize32
	if spec.plus {
		optSize = optSize64
	}
	secDataLen := len(spec.resources)
	total := sectionRaw + secDataLen
	buf := make([]byte, total)
	le := binary.LittleEndian

	// DOS header
	copy(buf[0:2], "MZ")
	le.PutUint32(buf[0x3c:], peHeaderOff)

	// Signature + COFF file header
	off := peHeaderOff
	copy(buf[off:], "PE\x00\x00")
	off += 4
	le.PutUint16(buf[off+0:], spec.machine)
	le.PutUint16(buf[off+2:], 1) // one section
	le.PutUint32(buf[off+4:], spec.timestamp)
	le.PutUint32(buf[off+8:], 0)  // symbol table ptr
	le.PutUint32(buf[off+12:], 0) // symbol count
	le.PutUint16(buf[off+16:], uint16(optSize))
	le.PutUint16(buf[off+18:], spec.chars)
	off += coffHdrSize

	// Optional header
	if spec.plus {
		le.PutUint16(buf[off+0:], MagicPE32Plus)
		buf[off+2] = 14 // linker major
		buf[off+3] = 2  // linker minor
		le.PutUint32(buf[off+4:], 0x600)   // size of code
		le.PutUint32(buf[off+8:], 0x400)   // initialized data
		le.PutUint32(buf[off+12:], 0)      // uninitialized data
		le.PutUint32(buf[off+16:], spec.entryPoint)
		le.PutUint32(buf[off+20:], 0x1000) // base of code
		le.PutUint64(buf[off+24:], spec.imageBase)
		le.PutUint32(buf[off+32:], alignSection)
		le.PutUint32(buf[off+36:], alignFile)
		le.PutUint16(buf[off+40:], 6) // os major
		le.PutUint16(buf[off+42:], 0)
		le.PutUint16(buf[off+44:], 1) // image major
		le.PutUint16(buf[off+46:], 0)
		le.PutUint16(buf[off+48:], 6) // subsystem major
		le.PutUint16(buf[off+50:], 0)
		le.PutUint32(buf[off+56:], 0x3000) // size of image
		le.PutUint32(buf[off+60:], 0x200)  // size of headers
		le.PutUint32(buf[off+64:], spec.checksum)
		le.PutUint16(buf[off+68:], spec.subsystem)
		le.PutUint16(buf[off+70:], 0x8140) // dll characteristics
		le.PutUint64(buf[off+72:], 0x100000) // stack reserve
		le.PutUint64(buf[off+80:], 0x1000)   // stack commit
		le.PutUint64(buf[off+88:], 0x100000) // heap reserve
		le.PutUint64(buf[off+96:], 0x1000)   // heap commit
		le.PutUint32(buf[off+104:], 0)       // loader flags
		le.PutUint32(buf[off+108:], numDirs)
		writeDirs(buf, off+112, spec)
	} else {
		le.PutUint16(buf[off+0:], MagicPE32)
		buf[off+2] = 14
		buf[off+3] = 2
		le.PutUint32(buf[off+4:], 0x600)
		le.PutUint32(buf[off+8:], 0x400)
		le.PutUint32(buf[off+12:], 0)
		le.PutUint32(buf[off+16:], spec.entryPoint)
		le.PutUint32(buf[off+20:], 0x1000)           // base of code
		le.PutUint32(buf[off+24:], 0x2000)           // base of data
		le.PutUint32(buf[off+28:], uint32(spec.imageBase))
		le.PutUint32(buf[off+32:], alignSection)
		le.PutUint32(buf[off+36:], alignFile)
		le.PutUint16(buf[off+40:], 6)
		le.PutUint16(buf[off+42:], 0)
		le.PutUint16(buf[off+44:], 1)
		le.PutUint16(buf[off+46:], 0)
		le.PutUint16(buf[off+48:], 6)
		le.PutUint16(buf[off+50:], 0)
		le.PutUint32(buf[off+56:], 0x3000)
		le.PutUint32(buf[off+60:], 0x200)
		le.PutUint32(buf[off+64:], spec.checksum)
		le.PutUint16(buf[off+68:], spec.subsystem)
		le.PutUint16(buf[off+70:], 0x8140)
		le.PutUint32(buf[off+72:], 0x100000)
		le.PutUint32(buf[off+76:], 0x1000)
		le.PutUint32(buf[off+80:], 0x100000)
		le.PutUint32(buf[off+84:], 0x1000)
		le.PutUint32(buf[off+88:], 0)
		le.PutUint32(buf[off+92:], numDirs)
		writeDirs(buf, off+96, spec)
	}
	off += optSize

	// Section header: .rsrc
	copy(buf[off:], ".rsrc")
	le.PutUint32(buf[off+8:], uint32(secDataLen))  // virtual size
	le.PutUint32(buf[off+12:], sectionRVA)         // virtual address
	le.PutUint32(buf[off+16:], uint32(secDataLen)) // raw size
	le.PutUint32(buf[off+20:], sectionRaw)         // raw offset

	copy(buf[sectionRaw:], spec.resources)
	return buf
}

// writeDirs fills the data-directory array. Import and IAT get fixed
// entries; the resource entry points at the .rsrc section when a blob is
// present.
func writeDirs(buf []byte, off int, spec peSpec) {
	le := binary.LittleEndian
	// import (index 1)
	le.PutUint32(buf[off+8:], 0x2100)
	le.PutUint32(buf[off+12:], 0x80)
	// resource (index 2)
	if len(spec.resources) > 0 {
		le.PutUint32(buf[off+16:], sectionRVA)
		le.PutUint32(buf[off+20:], uint32(len(spec.resources)))
	}
	// IAT (index 12)
	le.PutUint32(buf[off+96:], 0x2000)
	le.PutUint32(buf[off+100:], 0x100)
}

// buildResourceBlob assembles a three-level resource tree with a single
// leaf: type RT_MANIFEST (24), id 1, language 1033.
func buildResourceBlob() []byte {
	blob := make([]byte, 88)
	le := binary.LittleEndian

	writeDirHeader := func(off int, ids uint16) {
		le.PutUint16(blob[off+14:], ids)
	}

	// Root: one ID entry, type 24 -> subdir at 24.
	writeDirHeader(0, 1)
	le.PutUint32(blob[16:], 24)
	le.PutUint32(blob[20:], resEntryIsDirectory|24)

	// Type dir: id 1 -> subdir at 48.
	writeDirHeader(24, 1)
	le.PutUint32(blob[40:], 1)
	le.PutUint32(blob[44:], resEntryIsDirectory|48)

	// Language dir: lang 1033 -> leaf data entry at 72.
	writeDirHeader(48, 1)
	le.PutUint32(blob[64:], 1033)
	le.PutUint32(blob[68:], 72)

	// Data entry: rva, size, code page, reserved.
	le.PutUint32(blob[72:], 0x1100)
	le.PutUint32(blob[76:], 0x40)
	return blob
}

// writePE writes a synthetic PE to dir under name and returns its path.
func writePE(t *testing.T, dir, name string, spec peSpec) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buildPE(spec), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}
