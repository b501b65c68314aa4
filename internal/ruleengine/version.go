package ruleengine

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

const (
	versionFrontendBit = 1 << 0
	versionTodoBit     = 1 << 1
	versionToggleMask  = versionFrontendBit | versionTodoBit
)

// computeVersion derives the engine version from toggles and rule content.
// Toggles own the two low bits; the remaining bits carry a Murmur3 hash of a
// canonical encoding of the rules (zero without rules). Index names are a set,
// so their order does not change the version.
func computeVersion(s Settings) int {
	v := 0
	if s.FrontendIndexDisabled {
		v |= versionFrontendBit
	}
	if s.TodoIndexDisabled {
		v |= versionTodoBit
	}
	if len(s.Rules) == 0 {
		return v
	}

	hasher := murmur3.New32()
	var buf []byte
	for _, r := range s.Rules {
		buf = appendField(buf[:0], r.Pattern)
		buf = binary.AppendUvarint(buf, uint64(r.Policy.Mode))

		names := r.Policy.CanonicalNames()
		buf = binary.AppendUvarint(buf, uint64(len(names)))
		for _, n := range names {
			buf = appendField(buf, n)
		}
		_, _ = hasher.Write(buf) // Write never returns error in this implementation
	}

	sum := hasher.Sum32() &^ versionToggleMask
	if sum == 0 {
		// Keep "has rules" distinguishable from "no rules".
		sum = versionToggleMask + 1
	}
	return v | int(sum)
}

// appendField writes a length-prefixed string so field boundaries cannot shift.
func appendField(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}
