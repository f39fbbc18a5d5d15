// Package parser extracts structured function and memory call envelopes from
// free-form model output. It separates a stream into plain content and
// ordered call records, one-shot or fragment by fragment, and is correct
// under arbitrary fragmentation: feeding a text whole or split at every byte
// offset yields identical content and records.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"mfcs/internal/logging"
	"mfcs/pkg/types"
)

// ErrSessionClosed is returned when a session is used after Close. Feeding a
// finished stream is the only fatal condition the parser reports; everything
// else surfaces as diagnostics.
var ErrSessionClosed = errors.New("parse session already closed")

// Result carries the progress made by a single Feed or Close invocation:
// content released since the previous call, records whose envelopes closed,
// and non-fatal findings. Nothing in a Result is ever re-delivered.
type Result struct {
	Content     string             `json:"content"`
	Calls       []types.CallRecord `json:"calls,omitempty"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// Merge appends another result's progress onto r, preserving order.
func (r Result) Merge(next Result) Result {
	return Result{
		Content:     r.Content + next.Content,
		Calls:       append(r.Calls, next.Calls...),
		Diagnostics: append(r.Diagnostics, next.Diagnostics...),
	}
}

// Session is an incremental parse over one logical stream. A session is not
// safe for concurrent use; independent sessions share nothing and may run in
// parallel freely.
type Session struct {
	opts   options
	scan   scanner
	asm    *assembler
	closed bool

	// skipping is set when an envelope is abandoned for overflow: every event
	// up to and including that envelope's closing tag returns to content as
	// raw text, then normal routing resumes.
	skipping bool
}

// NewSession creates a session ready to receive fragments.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)

	s := &Session{
		opts: o,
		asm:  newAssembler(o.policy, o.maxCallBytes),
	}
	o.metrics.IncActiveSessions()
	return s
}

// Feed consumes the next fragment. Fragments may split anywhere, including
// mid-tag; text whose meaning is still ambiguous stays buffered until a later
// fragment or Close decides it.
func (s *Session) Feed(fragment string) (Result, error) {
	if s.closed {
		return Result{}, ErrSessionClosed
	}
	s.opts.metrics.ObserveFragment(len(fragment))
	return s.apply(s.scan.feed(fragment)), nil
}

// Close marks end of stream. Held-back text is released as content and an
// envelope still open is reported as a StructuralIncomplete diagnostic whose
// record carries the fields that were completed; such a record never appears
// in Calls.
func (s *Session) Close() (Result, error) {
	if s.closed {
		return Result{}, ErrSessionClosed
	}
	s.closed = true
	s.opts.metrics.DecActiveSessions()

	res := s.apply(s.scan.finish())
	if s.asm.open {
		snap, openField := s.asm.snapshot()
		rec, _ := s.buildRecord(snap)
		rec.Incomplete = true

		where := fmt.Sprintf("%s envelope", snap.kind)
		if openField != fieldNone {
			where = fmt.Sprintf("%s envelope, open <%s> field", snap.kind, openField)
		}
		res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
			Code:    types.DiagStructuralIncomplete,
			Message: fmt.Sprintf("stream ended inside %s", where),
			Record:  &rec,
		})
		s.opts.metrics.IncIncomplete()
		s.opts.logger.Warn("stream ended inside %s", where)
		s.asm.reset()
	}
	return res, nil
}

// Reset re-arms the session for a new stream, discarding any leftover state.
func (s *Session) Reset() {
	s.scan.reset()
	s.asm.reset()
	s.skipping = false
	if s.closed {
		s.closed = false
		s.opts.metrics.IncActiveSessions()
	}
}

// Parse runs a whole text through a fresh session in one shot.
func Parse(text string, opts ...Option) (Result, error) {
	session := NewSession(opts...)
	fed, err := session.Feed(text)
	if err != nil {
		return Result{}, err
	}
	closed, err := session.Close()
	if err != nil {
		return Result{}, err
	}
	return fed.Merge(closed), nil
}

// apply routes scanner events into content, the assembler and finished
// records. After an envelope is flushed for overflow, events still belong to
// it until its closing tag arrives, possibly feeds later; their bytes go
// straight back into content and routing resumes past the closer.
func (s *Session) apply(events []event) Result {
	var res Result
	var content strings.Builder

	for _, ev := range events {
		if s.skipping {
			content.WriteString(eventRawText(ev))
			if ev.typ == evEnvelopeClose {
				s.skipping = false
			}
			continue
		}

		switch ev.typ {
		case evText:
			if s.asm.open {
				s.asm.appendText(ev.text)
				s.checkOverflow(&res, &content)
			} else {
				content.WriteString(ev.text)
			}
		case evEnvelopeOpen:
			s.asm.begin(ev.kind)
			s.opts.logger.Debug("%s envelope opened", ev.kind)
			s.checkOverflow(&res, &content)
		case evFieldOpen:
			s.asm.openField(ev.field)
			s.checkOverflow(&res, &content)
		case evFieldClose:
			s.asm.closeField(ev.field)
		case evEnvelopeClose:
			snap := s.asm.closeEnvelope()
			rec, decodeErr := s.buildRecord(snap)
			res.Calls = append(res.Calls, rec)
			s.opts.metrics.IncCall(string(rec.Kind))
			s.opts.logger.Debug("%s call completed id=%q name=%q", rec.Kind, rec.ID, rec.Name)
			if decodeErr != nil {
				diagRec := rec.Clone()
				res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
					Code:    types.DiagPayloadDecode,
					Message: fmt.Sprintf("call %q: %v", rec.ID, decodeErr),
					Record:  &diagRec,
				})
				s.opts.metrics.IncDecodeFailure()
				s.opts.logger.Warn("call %q parameters undecodable: %v", rec.ID, decodeErr)
			}
		}
	}

	res.Content = content.String()
	return res
}

// buildRecord assembles the public record and decodes its payload. The decode
// error is returned separately so callers decide how to report it.
func (s *Session) buildRecord(snap assembled) (types.CallRecord, error) {
	rec := types.CallRecord{
		Kind:         snap.kind,
		ID:           snap.id,
		Name:         snap.name,
		Instructions: snap.instructions,
		Parameters:   map[string]any{},
	}
	if !snap.paramsSeen {
		return rec, nil
	}
	rec.RawParameters = snap.params
	params, err := decodeParameters(snap.params)
	rec.Parameters = params
	if err != nil {
		rec.DecodeError = err
	}
	return rec, err
}

// checkOverflow abandons an envelope that outgrew the cap: its raw bytes are
// flushed back into content and the session skips to the envelope's closing
// tag. The scanner keeps its modal state so the closer is still recognized
// and text inside the abandoned payload cannot open a new envelope.
func (s *Session) checkOverflow(res *Result, content *strings.Builder) {
	if !s.asm.open || !s.asm.overLimit() {
		return
	}
	kind := s.asm.kind
	content.WriteString(s.asm.rawText())
	s.asm.reset()
	s.skipping = true

	res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
		Code:    types.DiagEnvelopeOverflow,
		Message: fmt.Sprintf("%s envelope exceeded %d bytes and was flushed as content", kind, s.opts.maxCallBytes),
	})
	s.opts.metrics.IncOverflow()
	s.opts.logger.Warn("%s envelope exceeded %d bytes, flushed as content", kind, s.opts.maxCallBytes)
}

// eventRawText reconstructs the bytes a scanner event consumed.
func eventRawText(ev event) string {
	switch ev.typ {
	case evText:
		return ev.text
	case evEnvelopeOpen:
		return envelopeOpenTag(ev.kind)
	case evEnvelopeClose:
		return envelopeCloseTag(ev.kind)
	case evFieldOpen:
		return ev.field.openTag()
	case evFieldClose:
		return ev.field.closeTag()
	default:
		return ""
	}
}
