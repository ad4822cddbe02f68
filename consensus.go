package rulesmith

import (
	"encoding/binary"
	"encoding/hex"
)

// consensusWildcard is the hex digit standing for "any nibble" in byte
// patterns.
const consensusWildcard = '?'

// maxConsensusValues caps how many distinct values a variable column may
// take and still be worth wildcarding. Beyond this the consensus carries
// too little signal to pursue.
const maxConsensusValues = 9

// packLE returns the little-endian encoding of v truncated to width bytes.
func packLE(v uint64, width int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:width]
}

// hexLE32 packs a value as 4 little-endian bytes and returns its 8 hex
// digits. Negative values encode as two's complement.
func hexLE32(v int64) string {
	return hex.EncodeToString(packLE(uint64(uint32(v)), 4))
}

// hexLE64 packs a value as 8 little-endian bytes and returns its 16 hex
// digits.
func hexLE64(v int64) string {
	return hex.EncodeToString(packLE(uint64(v), 8))
}

// unpackLE32 reverses hexLE32.
func unpackLE32(s string) (uint32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// unpackLE64 reverses hexLE64.
func unpackLE64(s string) (uint64, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// distinctInt64 returns the distinct values of vals in first-appearance
// order.
func distinctInt64(vals []int64) []int64 {
	seen := make(map[int64]struct{}, len(vals))
	out := make([]int64, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// consensusHex builds the position-wise agreement of the 4-byte
// little-endian hex encodings of the given values. A position keeps its
// digit only when every value agrees there; any disagreement turns it into
// the wildcard. The result does not depend on input order, and adding a
// value can only turn literals into wildcards, never the reverse.
func consensusHex(values []int64) string {
	if len(values) == 0 {
		return ""
	}
	base := []byte(hexLE32(values[0]))
	for _, v := range values[1:] {
		enc := hexLE32(v)
		for i := 0; i < len(base); i++ {
			if base[i] != enc[i] {
				base[i] = consensusWildcard
			}
		}
	}
	return string(base)
}

// allWildcards reports whether the pattern carries no literal digit.
func allWildcards(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != consensusWildcard {
			return false
		}
	}
	return len(s) > 0
}
