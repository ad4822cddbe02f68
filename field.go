package rulesmith

import "strconv"

// Sentinel is the numeric fill marker for absent cells. Every legitimate
// catalog value is non-negative, so -1 is unambiguous in exported tables.
const Sentinel int64 = -1

// Optional-header magic values distinguishing the 32-bit and 64-bit
// header variants.
const (
	MagicPE32     = 0x10b
	MagicPE32Plus = 0x20b
)

// Field identifies one entry of the fixed feature catalog. The catalog is
// enumerated rather than open-ended so a misspelled name cannot create a
// phantom column.
//
// Ordering is load-bearing: the block from FieldMagic through FieldIATRVA
// is the optional-header pattern region, and the block from
// FieldResource0Type onward holds the resource-indexed columns.
type Field uint8

const (
	FieldMachine Field = iota
	FieldSectionCount
	FieldTimestamp
	FieldSymbolTablePtr
	FieldSymbolCount
	FieldOptionalHeaderSize
	FieldCharacteristics

	FieldMagic
	FieldLinkerMajor
	FieldLinkerMinor
	FieldCodeSize
	FieldInitializedDataSize
	FieldUninitializedDataSize
	FieldEntryPoint
	FieldBaseOfCode
	FieldBaseOfData
	FieldImageBase
	FieldSectionAlignment
	FieldFileAlignment
	FieldOSMajor
	FieldOSMinor
	FieldImageMajor
	FieldImageMinor
	FieldSubsystemMajor
	FieldSubsystemMinor
	FieldSizeOfImage
	FieldSizeOfHeaders
	FieldChecksum
	FieldSubsystem
	FieldDLLCharacteristics
	FieldStackReserve
	FieldStackCommit
	FieldHeapReserve
	FieldHeapCommit
	FieldLoaderFlags
	FieldRVACount

	FieldExportSize
	FieldExportRVA
	FieldImportSize
	FieldImportRVA
	FieldResourceSize
	FieldResourceRVA
	FieldExceptionSize
	FieldExceptionRVA
	FieldBaseRelocSize
	FieldBaseRelocRVA
	FieldDebugSize
	FieldDebugRVA
	FieldTLSSize
	FieldTLSRVA
	FieldIATSize
	FieldIATRVA

	FieldResource0Type
	FieldResource0Size
	FieldResource0Offset
	FieldResource0Lang
	FieldResource1Type
	FieldResource1Size
	FieldResource1Offset
	FieldResource1Lang

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldMachine:            "machine",
	FieldSectionCount:       "section_count",
	FieldTimestamp:          "timestamp",
	FieldSymbolTablePtr:     "symbol_table_ptr",
	FieldSymbolCount:        "symbol_count",
	FieldOptionalHeaderSize: "optional_header_size",
	FieldCharacteristics:    "characteristics",

	FieldMagic:                 "magic",
	FieldLinkerMajor:           "linker_major",
	FieldLinkerMinor:           "linker_minor",
	FieldCodeSize:              "code_size",
	FieldInitializedDataSize:   "initialized_data_size",
	FieldUninitializedDataSize: "uninitialized_data_size",
	FieldEntryPoint:            "entry_point",
	FieldBaseOfCode:            "base_of_code",
	FieldBaseOfData:            "base_of_data",
	FieldImageBase:             "image_base",
	FieldSectionAlignment:      "section_alignment",
	FieldFileAlignment:         "file_alignment",
	FieldOSMajor:               "os_major",
	FieldOSMinor:               "os_minor",
	FieldImageMajor:            "image_major",
	FieldImageMinor:            "image_minor",
	FieldSubsystemMajor:        "subsystem_major",
	FieldSubsystemMinor:        "subsystem_minor",
	FieldSizeOfImage:           "size_of_image",
	FieldSizeOfHeaders:         "size_of_headers",
	FieldChecksum:              "checksum",
	FieldSubsystem:             "subsystem",
	FieldDLLCharacteristics:    "dll_characteristics",
	FieldStackReserve:          "stack_reserve",
	FieldStackCommit:           "stack_commit",
	FieldHeapReserve:           "heap_reserve",
	FieldHeapCommit:            "heap_commit",
	FieldLoaderFlags:           "loader_flags",
	FieldRVACount:              "rva_count",

	FieldExportSize:    "export_size",
	FieldExportRVA:     "export_rva",
	FieldImportSize:    "import_size",
	FieldImportRVA:     "import_rva",
	FieldResourceSize:  "resource_size",
	FieldResourceRVA:   "resource_rva",
	FieldExceptionSize: "exception_size",
	FieldExceptionRVA:  "exception_rva",
	FieldBaseRelocSize: "basereloc_size",
	FieldBaseRelocRVA:  "basereloc_rva",
	FieldDebugSize:     "debug_size",
	FieldDebugRVA:      "debug_rva",
	FieldTLSSize:       "tls_size",
	FieldTLSRVA:        "tls_rva",
	FieldIATSize:       "iat_size",
	FieldIATRVA:        "iat_rva",

	FieldResource0Type:   "resource_0_type",
	FieldResource0Size:   "resource_0_size",
	FieldResource0Offset: "resource_0_offset",
	FieldResource0Lang:   "resource_0_lang",
	FieldResource1Type:   "resource_1_type",
	FieldResource1Size:   "resource_1_size",
	FieldResource1Offset: "resource_1_offset",
	FieldResource1Lang:   "resource_1_lang",
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		m[fieldNames[f]] = f
	}
	return m
}()

// FieldCount is the size of the fixed catalog.
const FieldCount = int(fieldCount)

// Name returns the column name of the field.
func (f Field) Name() string {
	if f < fieldCount {
		return fieldNames[f]
	}
	return "field(" + strconv.Itoa(int(f)) + ")"
}

// FieldByName resolves a column name back to its catalog field.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// InFileHeaderSet reports whether the field belongs to the COFF file-header
// assertion region of synthesized rules.
func (f Field) InFileHeaderSet() bool {
	switch f {
	case FieldSymbolTablePtr, FieldCharacteristics, FieldSymbolCount,
		FieldOptionalHeaderSize, FieldMachine, FieldTimestamp, FieldSectionCount:
		return true
	}
	return false
}

// InOptionalSet reports whether the field belongs to the optional-header
// byte-pattern region of synthesized rules. Data-directory fields are part
// of this region.
func (f Field) InOptionalSet() bool {
	return f >= FieldMagic && f <= FieldIATRVA
}

// Wide reports whether the field holds a 64-bit quantity under the PE32+
// header variant and therefore packs to 8 bytes instead of 4.
func (f Field) Wide() bool {
	switch f {
	case FieldImageBase, FieldStackReserve, FieldStackCommit,
		FieldHeapReserve, FieldHeapCommit:
		return true
	}
	return false
}

// ResourceIndexed reports whether the field is one of the per-leaf resource
// columns, whose absence is meaningful rather than exceptional.
func (f Field) ResourceIndexed() bool {
	return f >= FieldResource0Type && f <= FieldResource1Lang
}

// allLowercaseName reports whether a column name consists entirely of
// lowercase letters. Constant columns at the sentinel value are normally
// suppressed during synthesis; columns passing this test are kept.
func allLowercaseName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 'a' || name[i] > 'z' {
			return false
		}
	}
	return true
}

// Kind discriminates the representations a feature value can take.
type Kind uint8

const (
	// KindAbsent marks a field the parser could not obtain.
	KindAbsent Kind = iota
	// KindInt holds an integral header quantity.
	KindInt
	// KindFloat holds a wide quantity stored as floating point.
	KindFloat
	// KindString holds a textual value such as a resource type name.
	KindString
)

// Value is one feature cell. The zero Value is absent.
type Value struct {
	kind Kind
	n    int64
	f    float64
	s    string
}

// IntValue returns an integral value.
func IntValue(v int64) Value { return Value{kind: KindInt, n: v} }

// FloatValue returns a floating-point value.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue returns a textual value.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// SentinelValue returns the fill marker used for absent table cells.
func SentinelValue() Value { return IntValue(Sentinel) }

// Kind returns the value's representation.
func (v Value) Kind() Kind { return v.kind }

// Absent reports whether the value is missing entirely.
func (v Value) Absent() bool { return v.kind == KindAbsent }

// Int64 returns the integral form of a numeric value, truncating floats.
// Absent and string values yield zero.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt:
		return v.n
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float64 returns the numeric form of the value, if it has one.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.n), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Text returns the string payload, if the value is textual.
func (v Value) Text() (string, bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}

// IsSentinel reports whether the value equals the numeric fill marker.
func (v Value) IsSentinel() bool {
	switch v.kind {
	case KindInt:
		return v.n == Sentinel
	case KindFloat:
		return v.f == float64(Sentinel)
	}
	return false
}

// Equal compares two values. Integral and floating forms of the same
// number compare equal.
func (v Value) Equal(o Value) bool {
	if v.kind == KindString || o.kind == KindString {
		return v.kind == o.kind && v.s == o.s
	}
	if v.kind == KindAbsent || o.kind == KindAbsent {
		return v.kind == o.kind
	}
	a, _ := v.Float64()
	b, _ := o.Float64()
	return a == b
}

// String renders the value for logs and reports.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	}
	return "absent"
}
