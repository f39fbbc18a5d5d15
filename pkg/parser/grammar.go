package parser

import (
	"mfcs/pkg/types"
)

// Envelope markers. Tag literals are case-sensitive, carry no attributes and
// never self-close.
const (
	toolOpenTag    = "<mfcs_call>"
	toolCloseTag   = "</mfcs_call>"
	memoryOpenTag  = "<mfcs_memory>"
	memoryCloseTag = "</mfcs_memory>"
)

// field identifies an inner tag pair of an envelope.
type field int

const (
	fieldNone field = iota
	fieldInstructions
	fieldCallID
	fieldMemoryID
	fieldName
	fieldParameters
)

var fieldLabels = map[field]string{
	fieldInstructions: "instructions",
	fieldCallID:       "call_id",
	fieldMemoryID:     "memory_id",
	fieldName:         "name",
	fieldParameters:   "parameters",
}

func (f field) String() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return "none"
}

func (f field) openTag() string  { return "<" + f.String() + ">" }
func (f field) closeTag() string { return "</" + f.String() + ">" }

// tokenClass classifies a recognized tag literal.
type tokenClass int

const (
	classEnvelopeOpen tokenClass = iota
	classEnvelopeClose
	classFieldOpen
	classFieldClose
)

// tagToken binds a literal to its meaning in the current scan mode.
type tagToken struct {
	literal string
	class   tokenClass
	kind    types.CallKind
	field   field
}

func envelopeOpenTag(kind types.CallKind) string {
	if kind == types.KindMemory {
		return memoryOpenTag
	}
	return toolOpenTag
}

func envelopeCloseTag(kind types.CallKind) string {
	if kind == types.KindMemory {
		return memoryCloseTag
	}
	return toolCloseTag
}

func idField(kind types.CallKind) field {
	if kind == types.KindMemory {
		return fieldMemoryID
	}
	return fieldCallID
}

// outsideTokens is the recognition set while no envelope is open. Everything
// else, angle brackets included, is plain content.
var outsideTokens = []tagToken{
	{literal: toolOpenTag, class: classEnvelopeOpen, kind: types.KindTool},
	{literal: memoryOpenTag, class: classEnvelopeOpen, kind: types.KindMemory},
}

// envelopeTokenTable lists what an open envelope recognizes: its four field
// openers plus its own closer. Unknown tags inside an envelope stay text and
// are treated as filler by the assembler.
var envelopeTokenTable = map[types.CallKind][]tagToken{}

// fieldTokenTable lists what an open field recognizes: its own closer plus the
// enclosing envelope's closer. The envelope closer outranking the field keeps
// an unterminated field from swallowing the rest of the stream.
var fieldTokenTable = map[types.CallKind]map[field][]tagToken{}

// maxLiteralLen bounds the scanner carry-over: held text is always a strict
// prefix of one literal.
var maxLiteralLen int

func init() {
	for _, kind := range []types.CallKind{types.KindTool, types.KindMemory} {
		fields := []field{fieldInstructions, idField(kind), fieldName, fieldParameters}

		envTokens := make([]tagToken, 0, len(fields)+1)
		for _, f := range fields {
			envTokens = append(envTokens, tagToken{literal: f.openTag(), class: classFieldOpen, kind: kind, field: f})
		}
		envTokens = append(envTokens, tagToken{literal: envelopeCloseTag(kind), class: classEnvelopeClose, kind: kind})
		envelopeTokenTable[kind] = envTokens

		perField := make(map[field][]tagToken, len(fields))
		for _, f := range fields {
			perField[f] = []tagToken{
				{literal: f.closeTag(), class: classFieldClose, kind: kind, field: f},
				{literal: envelopeCloseTag(kind), class: classEnvelopeClose, kind: kind},
			}
		}
		fieldTokenTable[kind] = perField
	}

	for _, tok := range outsideTokens {
		if len(tok.literal) > maxLiteralLen {
			maxLiteralLen = len(tok.literal)
		}
	}
	for _, tokens := range envelopeTokenTable {
		for _, tok := range tokens {
			if len(tok.literal) > maxLiteralLen {
				maxLiteralLen = len(tok.literal)
			}
		}
	}
	for _, perField := range fieldTokenTable {
		for _, tokens := range perField {
			for _, tok := range tokens {
				if len(tok.literal) > maxLiteralLen {
					maxLiteralLen = len(tok.literal)
				}
			}
		}
	}
}
