package parser

import (
	"strings"

	"mfcs/pkg/types"
)

// DuplicateFieldPolicy decides which occurrence wins when an envelope repeats
// a field.
type DuplicateFieldPolicy int

const (
	// LastFieldWins keeps the value of the final occurrence. This is the
	// default.
	LastFieldWins DuplicateFieldPolicy = iota
	// FirstFieldWins keeps the value of the first occurrence and treats later
	// ones as filler.
	FirstFieldWins
)

// assembled is the raw material of one envelope after its closer arrived.
// Field values stay text here; payload decoding happens one layer up.
type assembled struct {
	kind         types.CallKind
	instructions string
	id           string
	name         string
	params       string
	paramsSeen   bool
	idSeen       bool
	nameSeen     bool
	instrSeen    bool
}

// assembler builds one record at a time from scanner events. It tracks the
// open envelope's committed fields, the currently open field and the raw byte
// count of the whole envelope for the overflow guard.
type assembler struct {
	policy   DuplicateFieldPolicy
	maxBytes int

	open      bool
	kind      types.CallKind
	active    field
	value     strings.Builder
	committed map[field]string
	raw       strings.Builder
}

func newAssembler(policy DuplicateFieldPolicy, maxBytes int) *assembler {
	return &assembler{policy: policy, maxBytes: maxBytes}
}

func (a *assembler) reset() {
	a.open = false
	a.kind = ""
	a.active = fieldNone
	a.value.Reset()
	a.committed = nil
	a.raw.Reset()
}

// begin opens a new envelope. The scanner guarantees at most one is open.
func (a *assembler) begin(kind types.CallKind) {
	a.open = true
	a.kind = kind
	a.active = fieldNone
	a.value.Reset()
	a.committed = make(map[field]string)
	a.raw.Reset()
	a.raw.WriteString(envelopeOpenTag(kind))
}

// appendText routes a text span inside the envelope: into the open field's
// value, or into filler which only counts toward the raw size.
func (a *assembler) appendText(text string) {
	if !a.open {
		return
	}
	a.raw.WriteString(text)
	if a.active != fieldNone {
		a.value.WriteString(text)
	}
}

func (a *assembler) openField(f field) {
	if !a.open {
		return
	}
	a.raw.WriteString(f.openTag())
	a.active = f
	a.value.Reset()
}

// closeField commits the open field's value subject to the duplicate policy.
func (a *assembler) closeField(f field) {
	if !a.open {
		return
	}
	a.raw.WriteString(f.closeTag())
	value := a.value.String()
	a.active = fieldNone
	a.value.Reset()

	if _, seen := a.committed[f]; seen && a.policy == FirstFieldWins {
		return
	}
	a.committed[f] = value
}

// closeEnvelope finalizes the record material. A field still open when the
// envelope closer arrives was never terminated and is dropped, mirroring how
// an unmatched inner tag pair never yields a value.
func (a *assembler) closeEnvelope() assembled {
	out := assembled{kind: a.kind}
	out.instructions, out.instrSeen = a.committed[fieldInstructions]
	out.id, out.idSeen = a.committed[idField(a.kind)]
	out.name, out.nameSeen = a.committed[fieldName]
	out.params, out.paramsSeen = a.committed[fieldParameters]
	a.reset()
	return out
}

// snapshot returns the partial material of a still-open envelope together
// with the field left open, for end-of-stream reporting. The assembler stays
// untouched.
func (a *assembler) snapshot() (assembled, field) {
	out := assembled{kind: a.kind}
	out.instructions, out.instrSeen = a.committed[fieldInstructions]
	out.id, out.idSeen = a.committed[idField(a.kind)]
	out.name, out.nameSeen = a.committed[fieldName]
	out.params, out.paramsSeen = a.committed[fieldParameters]
	return out, a.active
}

// overLimit reports whether the open envelope outgrew the configured cap.
func (a *assembler) overLimit() bool {
	return a.maxBytes > 0 && a.raw.Len() > a.maxBytes
}

// rawText returns every byte consumed by the open envelope so far, markup
// included, so an abandoned envelope can be surfaced as plain content.
func (a *assembler) rawText() string {
	return a.raw.String()
}
