package rulesmith

import (
	"encoding/binary"
	"strconv"
	"unicode/utf16"
)

const (
	resEntryIsDirectory = 0x80000000
	resOffsetMask       = 0x7fffffff

	// maxResourceSlots is how many leaf entries the catalog can hold.
	maxResourceSlots = 2
	// resourceSlotWidth is the number of catalog fields per leaf.
	resourceSlotWidth = 4

	maxResourceDirs = 4096
)

// resourceTypeNames maps well-known resource type codes to their names,
// used when a type entry carries no name string.
var resourceTypeNames = map[uint32]string{
	1:  "RT_CURSOR",
	2:  "RT_BITMAP",
	3:  "RT_ICON",
	4:  "RT_MENU",
	5:  "RT_DIALOG",
	6:  "RT_STRING",
	7:  "RT_FONTDIR",
	8:  "RT_FONT",
	9:  "RT_ACCELERATOR",
	10: "RT_RCDATA",
	11: "RT_MESSAGETABLE",
	12: "RT_GROUP_CURSOR",
	14: "RT_GROUP_ICON",
	16: "RT_VERSION",
	17: "RT_DLGINCLUDE",
	19: "RT_PLUGPLAY",
	20: "RT_VXD",
	21: "RT_ANICURSOR",
	22: "RT_ANIICON",
	23: "RT_HTML",
	24: "RT_MANIFEST",
}

// resourceLeaf is one data entry found in the type -> id -> language walk.
type resourceLeaf struct {
	typeName string
	size     uint32
	offset   uint32
	lang     uint32
}

type resourceWalker struct {
	data      []byte
	maxLeaves int
	maxDepth  int
	visited   map[uint32]struct{}
	dirs      int
	leaves    []resourceLeaf
}

// walkResources collects up to maxLeaves leaf data entries from a resource
// directory blob, in traversal order. All offsets are relative to the start
// of data. The walk is bounds-checked, cycle-guarded, and depth-capped so
// hostile trees cannot hang or crash the parser.
func walkResources(data []byte, maxLeaves, maxDepth int) []resourceLeaf {
	if len(data) < 16 || maxLeaves <= 0 {
		return nil
	}
	w := &resourceWalker{
		data:      data,
		maxLeaves: maxLeaves,
		maxDepth:  maxDepth,
		visited:   make(map[uint32]struct{}, 16),
	}
	w.walk(0, 0, "", 0)
	return w.leaves
}

func (w *resourceWalker) walk(dirOff uint32, depth int, typeName string, lang uint32) {
	if len(w.leaves) >= w.maxLeaves || depth > w.maxDepth || w.dirs >= maxResourceDirs {
		return
	}
	size := uint32(len(w.data))
	if dirOff > size || size-dirOff < 16 {
		return
	}
	if _, ok := w.visited[dirOff]; ok {
		return
	}
	w.visited[dirOff] = struct{}{}
	w.dirs++

	nNamed := binary.LittleEndian.Uint16(w.data[dirOff+12 : dirOff+14])
	nIDs := binary.LittleEndian.Uint16(w.data[dirOff+14 : dirOff+16])
	n := int(nNamed) + int(nIDs)
	if n <= 0 {
		return
	}

	entriesOff := dirOff + 16
	if entriesOff > size {
		return
	}
	if max := int((size - entriesOff) / 8); n > max {
		n = max
	}

	for i := 0; i < n && len(w.leaves) < w.maxLeaves; i++ {
		eoff := entriesOff + uint32(i*8)
		nameField := binary.LittleEndian.Uint32(w.data[eoff : eoff+4])
		offField := binary.LittleEndian.Uint32(w.data[eoff+4 : eoff+8])
		target := offField & resOffsetMask

		entryType, entryLang := typeName, lang
		switch depth {
		case 0:
			entryType = w.entryName(nameField)
		case 2:
			entryLang = nameField & resOffsetMask
		}

		if offField&resEntryIsDirectory != 0 {
			w.walk(target, depth+1, entryType, entryLang)
			continue
		}

		// Leaf data entry: rva, size, code page, reserved.
		if target > size || size-target < 16 {
			continue
		}
		dataRVA := binary.LittleEndian.Uint32(w.data[target : target+4])
		dataSize := binary.LittleEndian.Uint32(w.data[target+4 : target+8])
		w.leaves = append(w.leaves, resourceLeaf{
			typeName: entryType,
			size:     dataSize,
			offset:   dataRVA,
			lang:     entryLang,
		})
	}
}

// entryName resolves a type entry's label: the embedded UTF-16 name when
// the high bit is set, otherwise the known type-code table, otherwise the
// raw code in decimal.
func (w *resourceWalker) entryName(nameField uint32) string {
	if nameField&resEntryIsDirectory == 0 {
		if s, ok := resourceTypeNames[nameField]; ok {
			return s
		}
		return strconv.FormatUint(uint64(nameField), 10)
	}

	off := nameField & resOffsetMask
	size := uint32(len(w.data))
	if off > size || size-off < 2 {
		return strconv.FormatUint(uint64(off), 10)
	}
	n := uint32(binary.LittleEndian.Uint16(w.data[off : off+2]))
	off += 2
	if n == 0 || n > 256 || size-off < n*2 {
		return strconv.FormatUint(uint64(nameField&resOffsetMask), 10)
	}
	u := make([]uint16, n)
	for i := uint32(0); i < n; i++ {
		u[i] = binary.LittleEndian.Uint16(w.data[off+i*2 : off+i*2+2])
	}
	return string(utf16.Decode(u))
}
