package parser

import (
	"strings"

	"mfcs/pkg/types"
)

// scanMode tracks which recognition set applies to the next byte.
type scanMode int

const (
	modeOutside scanMode = iota
	modeEnvelope
	modeField
)

// eventType discriminates scanner output events.
type eventType int

const (
	evText eventType = iota
	evEnvelopeOpen
	evEnvelopeClose
	evFieldOpen
	evFieldClose
)

// event is one unit of scanner output. Text events carry the span verbatim;
// tag events carry the envelope kind and, for field tags, the field identity.
type event struct {
	typ   eventType
	text  string
	kind  types.CallKind
	field field
}

// scanner is the modal incremental tokenizer. It consumes fragments of
// arbitrary size and emits text spans and tag events in source order. The only
// text it withholds is a buffer tail that is a strict prefix of a literal
// recognizable in the current mode; everything else is released immediately.
type scanner struct {
	mode  scanMode
	kind  types.CallKind
	field field
	buf   string
}

// tokens returns the recognition set for the current mode.
func (s *scanner) tokens() []tagToken {
	switch s.mode {
	case modeEnvelope:
		return envelopeTokenTable[s.kind]
	case modeField:
		return fieldTokenTable[s.kind][s.field]
	default:
		return outsideTokens
	}
}

// feed appends chunk to the carry-over buffer and scans as far as certainty
// allows. Fragment boundaries may fall anywhere, including inside a tag name.
func (s *scanner) feed(chunk string) []event {
	if chunk == "" {
		return nil
	}
	s.buf += chunk

	var events []event
	for {
		idx, tok := findFirstToken(s.buf, s.tokens())
		if idx < 0 {
			break
		}
		if idx > 0 {
			events = append(events, event{typ: evText, text: s.buf[:idx]})
		}
		events = append(events, s.apply(tok))
		s.buf = s.buf[idx+len(tok.literal):]
	}

	// No complete tag left. Hold back only a tail that could still become
	// one; flush the rest.
	hold := s.holdbackLen()
	if flushed := s.buf[:len(s.buf)-hold]; flushed != "" {
		events = append(events, event{typ: evText, text: flushed})
	}
	s.buf = s.buf[len(s.buf)-hold:]
	return events
}

// finish releases the carry-over buffer as text. Called once at end of
// stream: a held prefix that never completed is ordinary text after all.
func (s *scanner) finish() []event {
	if s.buf == "" {
		return nil
	}
	events := []event{{typ: evText, text: s.buf}}
	s.buf = ""
	return events
}

func (s *scanner) reset() {
	s.mode = modeOutside
	s.kind = ""
	s.field = fieldNone
	s.buf = ""
}

// apply transitions the mode for a recognized tag and returns its event.
func (s *scanner) apply(tok tagToken) event {
	switch tok.class {
	case classEnvelopeOpen:
		s.mode = modeEnvelope
		s.kind = tok.kind
	case classEnvelopeClose:
		s.mode = modeOutside
		s.kind = ""
		s.field = fieldNone
	case classFieldOpen:
		s.mode = modeField
		s.field = tok.field
	case classFieldClose:
		s.mode = modeEnvelope
		s.field = fieldNone
	}

	ev := event{kind: tok.kind, field: tok.field}
	switch tok.class {
	case classEnvelopeOpen:
		ev.typ = evEnvelopeOpen
	case classEnvelopeClose:
		ev.typ = evEnvelopeClose
	case classFieldOpen:
		ev.typ = evFieldOpen
	case classFieldClose:
		ev.typ = evFieldClose
	}
	return ev
}

// holdbackLen returns how many trailing bytes of the buffer must be withheld
// because they form a strict prefix of a recognizable literal. Literals start
// with '<' and contain no interior '<', so only a tail starting at the last
// '<' can still be live.
func (s *scanner) holdbackLen() int {
	start := strings.LastIndexByte(s.buf, '<')
	if start < 0 {
		return 0
	}
	tail := s.buf[start:]
	for _, tok := range s.tokens() {
		if len(tail) < len(tok.literal) && strings.HasPrefix(tok.literal, tail) {
			return len(tail)
		}
	}
	return 0
}

// findFirstToken locates the earliest occurrence of any token literal. On an
// equal index the longer literal wins, keeping matching deterministic.
func findFirstToken(buf string, tokens []tagToken) (int, tagToken) {
	best := -1
	var bestTok tagToken
	for _, tok := range tokens {
		idx := strings.Index(buf, tok.literal)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best || (idx == best && len(tok.literal) > len(bestTok.literal)) {
			best = idx
			bestTok = tok
		}
	}
	return best, bestTok
}
