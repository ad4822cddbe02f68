package rulesmith

import (
	"debug/pe"
	"log/slog"
	"os"
	"path/filepath"
)

// ParserConfig configures header extraction.
type ParserConfig struct {
	// MaxResourceLeaves is how many resource leaf entries to capture.
	// The catalog has room for two; larger values are clamped.
	// Default: 2. Zero disables the resource walk.
	MaxResourceLeaves int

	// MaxResourceDepth bounds the resource tree recursion.
	// Default: 16.
	MaxResourceDepth int

	// ComputeDigest enables hashing file contents for rule metadata.
	// Default: true.
	ComputeDigest bool
}

// DefaultParserConfig returns a parser configuration with sensible defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		MaxResourceLeaves: maxResourceSlots,
		MaxResourceDepth:  16,
		ComputeDigest:     true,
	}
}

func (c *ParserConfig) normalize() {
	if c.MaxResourceLeaves < 0 || c.MaxResourceLeaves > maxResourceSlots {
		c.MaxResourceLeaves = maxResourceSlots
	}
	if c.MaxResourceDepth <= 0 {
		c.MaxResourceDepth = 16
	}
}

// Parser decodes the fixed feature catalog from PE files. Parsing is
// tolerant: malformed or truncated structures produce partial records and
// warnings, never an error. Only failing to read the file at all is
// reported to the caller.
type Parser struct {
	cfg ParserConfig
}

// NewParser creates a parser.
func NewParser(cfg ParserConfig) *Parser {
	cfg.normalize()
	return &Parser{cfg: cfg}
}

// Parse extracts a feature record from the file at path. The returned
// record always carries the base filename; every other field is present
// only if it was decoded before the first failure point.
func (p *Parser) Parse(path string) (*Record, error) {
	rec := NewRecord(filepath.Base(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, newParseError(path, StageOpen, err)
	}
	defer func() { _ = f.Close() }()

	if p.cfg.ComputeDigest {
		if d, derr := hashReader(f); derr == nil {
			rec.Digest = d
		}
	}

	p.extract(path, f, rec)
	return rec, nil
}

// extract decodes headers into rec. It never fails: problems become
// warnings and the record keeps whatever was already set. debug/pe can
// panic on crafted headers, so the walk runs under a recover.
func (p *Parser) extract(path string, f *os.File, rec *Record) {
	defer func() {
		if r := recover(); r != nil {
			rec.warn(StageFileHeader, "header walk panicked: %v", r)
			slog.Warn("parse recovered", "file", path, "panic", r)
		}
	}()

	pf, err := pe.NewFile(f)
	if err != nil {
		rec.warn(StageFileHeader, "%v", err)
		slog.Warn("parse failed", "file", path, "stage", StageFileHeader.String(), "err", err)
		return
	}

	extractFileHeader(&pf.FileHeader, rec)

	dirs, declared := extractOptionalHeader(pf, rec)
	if dirs == nil {
		return
	}

	n := extractDirectories(dirs, declared, rec)

	if p.cfg.MaxResourceLeaves > 0 {
		p.extractResources(pf, dirs, n, rec)
	}
}

func extractFileHeader(fh *pe.FileHeader, rec *Record) {
	rec.setInt(FieldMachine, int64(fh.Machine))
	rec.setInt(FieldSectionCount, int64(fh.NumberOfSections))
	rec.setInt(FieldTimestamp, int64(fh.TimeDateStamp))
	rec.setInt(FieldSymbolTablePtr, int64(fh.PointerToSymbolTable))
	rec.setInt(FieldSymbolCount, int64(fh.NumberOfSymbols))
	rec.setInt(FieldOptionalHeaderSize, int64(fh.SizeOfOptionalHeader))
	rec.setInt(FieldCharacteristics, int64(fh.Characteristics))
}

// extractOptionalHeader decodes the optional-header block and returns the
// data-directory array with its declared entry count, or nil when the file
// has no usable optional header.
func extractOptionalHeader(pf *pe.File, rec *Record) ([]pe.DataDirectory, uint32) {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		rec.setInt(FieldMagic, int64(oh.Magic))
		rec.setInt(FieldLinkerMajor, int64(oh.MajorLinkerVersion))
		rec.setInt(FieldLinkerMinor, int64(oh.MinorLinkerVersion))
		rec.setInt(FieldCodeSize, int64(oh.SizeOfCode))
		rec.setInt(FieldInitializedDataSize, int64(oh.SizeOfInitializedData))
		rec.setInt(FieldUninitializedDataSize, int64(oh.SizeOfUninitializedData))
		rec.setInt(FieldEntryPoint, int64(oh.AddressOfEntryPoint))
		rec.setInt(FieldBaseOfCode, int64(oh.BaseOfCode))
		rec.setInt(FieldBaseOfData, int64(oh.BaseOfData))
		rec.set(FieldImageBase, FloatValue(float64(oh.ImageBase)))
		rec.setInt(FieldSectionAlignment, int64(oh.SectionAlignment))
		rec.setInt(FieldFileAlignment, int64(oh.FileAlignment))
		rec.setInt(FieldOSMajor, int64(oh.MajorOperatingSystemVersion))
		rec.setInt(FieldOSMinor, int64(oh.MinorOperatingSystemVersion))
		rec.setInt(FieldImageMajor, int64(oh.MajorImageVersion))
		rec.setInt(FieldImageMinor, int64(oh.MinorImageVersion))
		rec.setInt(FieldSubsystemMajor, int64(oh.MajorSubsystemVersion))
		rec.setInt(FieldSubsystemMinor, int64(oh.MinorSubsystemVersion))
		rec.setInt(FieldSizeOfImage, int64(oh.SizeOfImage))
		rec.setInt(FieldSizeOfHeaders, int64(oh.SizeOfHeaders))
		rec.setInt(FieldChecksum, int64(oh.CheckSum))
		rec.setInt(FieldSubsystem, int64(oh.Subsystem))
		rec.setInt(FieldDLLCharacteristics, int64(oh.DllCharacteristics))
		rec.set(FieldStackReserve, FloatValue(float64(oh.SizeOfStackReserve)))
		rec.set(FieldStackCommit, FloatValue(float64(oh.SizeOfStackCommit)))
		rec.set(FieldHeapReserve, FloatValue(float64(oh.SizeOfHeapReserve)))
		rec.set(FieldHeapCommit, FloatValue(float64(oh.SizeOfHeapCommit)))
		rec.setInt(FieldLoaderFlags, int64(oh.LoaderFlags))
		rec.setInt(FieldRVACount, int64(oh.NumberOfRvaAndSizes))
		return oh.DataDirectory[:], oh.NumberOfRvaAndSizes
	case *pe.OptionalHeader64:
		rec.setInt(FieldMagic, int64(oh.Magic))
		rec.setInt(FieldLinkerMajor, int64(oh.MajorLinkerVersion))
		rec.setInt(FieldLinkerMinor, int64(oh.MinorLinkerVersion))
		rec.setInt(FieldCodeSize, int64(oh.SizeOfCode))
		rec.setInt(FieldInitializedDataSize, int64(oh.SizeOfInitializedData))
		rec.setInt(FieldUninitializedDataSize, int64(oh.SizeOfUninitializedData))
		rec.setInt(FieldEntryPoint, int64(oh.AddressOfEntryPoint))
		rec.setInt(FieldBaseOfCode, int64(oh.BaseOfCode))
		rec.set(FieldImageBase, FloatValue(float64(oh.ImageBase)))
		rec.setInt(FieldSectionAlignment, int64(oh.SectionAlignment))
		rec.setInt(FieldFileAlignment, int64(oh.FileAlignment))
		rec.setInt(FieldOSMajor, int64(oh.MajorOperatingSystemVersion))
		rec.setInt(FieldOSMinor, int64(oh.MinorOperatingSystemVersion))
		rec.setInt(FieldImageMajor, int64(oh.MajorImageVersion))
		rec.setInt(FieldImageMinor, int64(oh.MinorImageVersion))
		rec.setInt(FieldSubsystemMajor, int64(oh.MajorSubsystemVersion))
		rec.setInt(FieldSubsystemMinor, int64(oh.MinorSubsystemVersion))
		rec.setInt(FieldSizeOfImage, int64(oh.SizeOfImage))
		rec.setInt(FieldSizeOfHeaders, int64(oh.SizeOfHeaders))
		rec.setInt(FieldChecksum, int64(oh.CheckSum))
		rec.setInt(FieldSubsystem, int64(oh.Subsystem))
		rec.setInt(FieldDLLCharacteristics, int64(oh.DllCharacteristics))
		rec.set(FieldStackReserve, FloatValue(float64(oh.SizeOfStackReserve)))
		rec.set(FieldStackCommit, FloatValue(float64(oh.SizeOfStackCommit)))
		rec.set(FieldHeapReserve, FloatValue(float64(oh.SizeOfHeapReserve)))
		rec.set(FieldHeapCommit, FloatValue(float64(oh.SizeOfHeapCommit)))
		rec.setInt(FieldLoaderFlags, int64(oh.LoaderFlags))
		rec.setInt(FieldRVACount, int64(oh.NumberOfRvaAndSizes))
		return oh.DataDirectory[:], oh.NumberOfRvaAndSizes
	case nil:
		return nil, 0
	default:
		rec.warn(StageOptionalHeader, "unsupported optional header variant %T", pf.OptionalHeader)
		return nil, 0
	}
}

// directoryFields maps the retained data-directory indexes to their catalog
// fields. The import address table appears once.
var directoryFields = []struct {
	index int
	size  Field
	rva   Field
}{
	{pe.IMAGE_DIRECTORY_ENTRY_EXPORT, FieldExportSize, FieldExportRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_IMPORT, FieldImportSize, FieldImportRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_RESOURCE, FieldResourceSize, FieldResourceRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_EXCEPTION, FieldExceptionSize, FieldExceptionRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_BASERELOC, FieldBaseRelocSize, FieldBaseRelocRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_DEBUG, FieldDebugSize, FieldDebugRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_TLS, FieldTLSSize, FieldTLSRVA},
	{pe.IMAGE_DIRECTORY_ENTRY_IAT, FieldIATSize, FieldIATRVA},
}

// extractDirectories emits size and rva for each retained directory lying
// within the declared entry count, and returns that count bounded by the
// array length.
func extractDirectories(dirs []pe.DataDirectory, declared uint32, rec *Record) int {
	n := len(dirs)
	if int(declared) < n {
		n = int(declared)
	}
	for _, df := range directoryFields {
		if df.index >= n {
			continue
		}
		d := dirs[df.index]
		rec.setInt(df.size, int64(d.Size))
		rec.setInt(df.rva, int64(d.VirtualAddress))
	}
	return n
}

func (p *Parser) extractResources(pf *pe.File, dirs []pe.DataDirectory, n int, rec *Record) {
	if pe.IMAGE_DIRECTORY_ENTRY_RESOURCE >= n {
		return
	}
	rd := dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]
	if rd.VirtualAddress == 0 || rd.Size == 0 {
		return
	}

	var sec *pe.Section
	for _, s := range pf.Sections {
		if rvaInSection(rd.VirtualAddress, s) {
			sec = s
			break
		}
	}
	if sec == nil {
		rec.warn(StageResources, "resource directory rva 0x%x outside all sections", rd.VirtualAddress)
		return
	}

	raw, err := sec.Data()
	if err != nil {
		rec.warn(StageResources, "reading section %q: %v", sec.Name, err)
		return
	}
	start := rd.VirtualAddress - sec.VirtualAddress
	if uint64(start) >= uint64(len(raw)) {
		rec.warn(StageResources, "resource directory offset 0x%x beyond section data", start)
		return
	}
	data := raw[start:]
	if int64(rd.Size) < int64(len(data)) {
		data = data[:rd.Size]
	}

	leaves := walkResources(data, p.cfg.MaxResourceLeaves, p.cfg.MaxResourceDepth)
	for i, leaf := range leaves {
		if i >= maxResourceSlots {
			break
		}
		base := FieldResource0Type + Field(i*resourceSlotWidth)
		rec.set(base, StringValue(leaf.typeName))
		rec.setInt(base+1, int64(leaf.size))
		rec.setInt(base+2, int64(leaf.offset))
		rec.setInt(base+3, int64(leaf.lang))
	}
}

func rvaInSection(rva uint32, s *pe.Section) bool {
	if s == nil {
		return false
	}
	size := s.VirtualSize
	if s.Size > size {
		size = s.Size
	}
	if size == 0 || rva < s.VirtualAddress {
		return false
	}
	return rva-s.VirtualAddress < size
}
