package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mfcs/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleCallInput = `Hi <mfcs_call><call_id>c1</call_id><name>f</name><parameters>{"a":1}</parameters></mfcs_call> bye`

// feedAll replays input through one session in the given fragments and merges
// every result, Close included.
func feedAll(t *testing.T, fragments []string, opts ...Option) Result {
	t.Helper()
	session := NewSession(opts...)
	var total Result
	for _, fragment := range fragments {
		res, err := session.Feed(fragment)
		require.NoError(t, err)
		total = total.Merge(res)
	}
	res, err := session.Close()
	require.NoError(t, err)
	return total.Merge(res)
}

// requireSameOutcome compares two results including decode errors, which
// marshal to strings.
func requireSameOutcome(t *testing.T, want, got Result, context string) {
	t.Helper()
	require.Equal(t, want.Content, got.Content, "%s: content differs", context)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON), "%s: outcome differs", context)
}

func TestParseExtractsSingleCall(t *testing.T) {
	res, err := Parse(singleCallInput)
	require.NoError(t, err)

	assert.Equal(t, "Hi  bye", res.Content)
	require.Len(t, res.Calls, 1)
	assert.Empty(t, res.Diagnostics)

	call := res.Calls[0]
	assert.Equal(t, types.KindTool, call.Kind)
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, "f", call.Name)
	assert.Equal(t, map[string]any{"a": float64(1)}, call.Parameters)
	assert.Equal(t, `{"a":1}`, call.RawParameters)
	assert.Nil(t, call.DecodeError)
	assert.False(t, call.Incomplete)
}

func TestSessionPerFragmentDeltas(t *testing.T) {
	session := NewSession()

	res1, err := session.Feed(`Hi <mfcs_call><call_id>c1</call_id><na`)
	require.NoError(t, err)
	assert.Equal(t, "Hi ", res1.Content)
	assert.Empty(t, res1.Calls)

	res2, err := session.Feed(`me>f</name><parameters>{"a":`)
	require.NoError(t, err)
	assert.Empty(t, res2.Content)
	assert.Empty(t, res2.Calls)

	res3, err := session.Feed(`1}</parameters></mfcs_call> bye`)
	require.NoError(t, err)
	assert.Equal(t, " bye", res3.Content)
	require.Len(t, res3.Calls, 1)
	assert.Equal(t, "c1", res3.Calls[0].ID)
	assert.Equal(t, map[string]any{"a": float64(1)}, res3.Calls[0].Parameters)

	res4, err := session.Close()
	require.NoError(t, err)
	assert.Empty(t, res4.Content)
	assert.Empty(t, res4.Calls)
	assert.Empty(t, res4.Diagnostics)
}

func TestParseMultipleCallsPreserveOrder(t *testing.T) {
	input := `first <mfcs_call><call_id>a</call_id><name>one</name><parameters>{}</parameters></mfcs_call>` +
		` middle <mfcs_memory><memory_id>m</memory_id><name>keep</name><parameters>{"v":true}</parameters></mfcs_memory>` +
		`<mfcs_call><call_id>b</call_id><name>two</name><parameters>{}</parameters></mfcs_call> last`

	res, err := Parse(input)
	require.NoError(t, err)

	assert.Equal(t, "first  middle  last", res.Content)
	require.Len(t, res.Calls, 3)
	assert.Equal(t, types.KindTool, res.Calls[0].Kind)
	assert.Equal(t, "a", res.Calls[0].ID)
	assert.Equal(t, types.KindMemory, res.Calls[1].Kind)
	assert.Equal(t, "m", res.Calls[1].ID)
	assert.Equal(t, types.KindTool, res.Calls[2].Kind)
	assert.Equal(t, "b", res.Calls[2].ID)
}

func TestFragmentationInvariance(t *testing.T) {
	inputs := map[string]string{
		"single call": singleCallInput,
		"back to back": `<mfcs_call><call_id>x</call_id><name>f</name><parameters>{"n":1}</parameters></mfcs_call>` +
			`<mfcs_call><call_id>y</call_id><name>g</name><parameters>{"n":2}</parameters></mfcs_call>`,
		"mixed kinds unicode": `héllo ☃ <mfcs_memory><memory_id>m1</memory_id><instructions>记住</instructions>` +
			`<name>store</name><parameters>{"text":"日本語"}</parameters></mfcs_memory> wörld`,
		"malformed payload": `x <mfcs_call><call_id>bad</call_id><name>f</name><parameters>not json at all ]][</parameters></mfcs_call> y`,
		"stray brackets":    "a < b <mfcs c <name>text</name> 2<3 <mfcs_call not really",
		"angle in payload":  `<mfcs_call><call_id>q</call_id><name>cmp</name><parameters>{"expr":"a<b && c>d"}</parameters></mfcs_call>`,
		"ends incomplete":   `Hello <mfcs_call><call_id>c9</call_id><name>part`,
		"closer recovery":   `pre <mfcs_call><call_id>r</call_id><parameters>{"a":1</mfcs_call> post`,
		"crlf content":      "line1\r\nline2 <mfcs_call><call_id>n</call_id><name>f</name><parameters>{}</parameters></mfcs_call>\r\nline3",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			oneShot, err := Parse(input)
			require.NoError(t, err)

			// Split into two fragments at every byte offset.
			for i := 0; i <= len(input); i++ {
				got := feedAll(t, []string{input[:i], input[i:]})
				requireSameOutcome(t, oneShot, got, fmt.Sprintf("split at %d", i))
			}

			// Byte-by-byte replay.
			fragments := make([]string, 0, len(input))
			for i := 0; i < len(input); i++ {
				fragments = append(fragments, input[i:i+1])
			}
			got := feedAll(t, fragments)
			requireSameOutcome(t, oneShot, got, "byte by byte")
		})
	}
}

func TestSessionDeliversEachRecordExactlyOnce(t *testing.T) {
	input := singleCallInput +
		`<mfcs_call><call_id>c2</call_id><name>g</name><parameters>{"b":2}</parameters></mfcs_call> tail`

	session := NewSession()
	var ids []string
	var content strings.Builder
	for i := 0; i < len(input); i++ {
		res, err := session.Feed(input[i : i+1])
		require.NoError(t, err)
		content.WriteString(res.Content)
		for _, call := range res.Calls {
			ids = append(ids, call.ID)
		}
	}
	res, err := session.Close()
	require.NoError(t, err)
	content.WriteString(res.Content)
	for _, call := range res.Calls {
		ids = append(ids, call.ID)
	}

	assert.Equal(t, []string{"c1", "c2"}, ids)
	assert.Equal(t, "Hi  bye tail", content.String())
}

func TestMalformedPayloadDoesNotAbortStream(t *testing.T) {
	input := `a <mfcs_call><call_id>bad</call_id><name>f</name><parameters>]broken[</parameters></mfcs_call>` +
		` b <mfcs_call><call_id>ok</call_id><name>g</name><parameters>{"fine":1}</parameters></mfcs_call> c`

	res, err := Parse(input)
	require.NoError(t, err)

	assert.Equal(t, "a  b  c", res.Content)
	require.Len(t, res.Calls, 2)

	bad := res.Calls[0]
	assert.Equal(t, "bad", bad.ID)
	require.Error(t, bad.DecodeError)
	assert.NotNil(t, bad.Parameters)
	assert.Empty(t, bad.Parameters)
	assert.Equal(t, "]broken[", bad.RawParameters)

	ok := res.Calls[1]
	assert.Equal(t, "ok", ok.ID)
	assert.Nil(t, ok.DecodeError)
	assert.Equal(t, map[string]any{"fine": float64(1)}, ok.Parameters)

	require.Len(t, res.Diagnostics, 1)
	diag := res.Diagnostics[0]
	assert.Equal(t, types.DiagPayloadDecode, diag.Code)
	require.NotNil(t, diag.Record)
	assert.Equal(t, "bad", diag.Record.ID)
}

func TestCloseReportsStructuralIncomplete(t *testing.T) {
	session := NewSession()

	res, err := session.Feed(`Hello <mfcs_call><call_id>c9</call_id><name>part`)
	require.NoError(t, err)
	assert.Equal(t, "Hello ", res.Content)

	closed, err := session.Close()
	require.NoError(t, err)
	assert.Empty(t, closed.Calls)
	require.Len(t, closed.Diagnostics, 1)

	diag := closed.Diagnostics[0]
	assert.Equal(t, types.DiagStructuralIncomplete, diag.Code)
	assert.Contains(t, diag.Message, "name")
	require.NotNil(t, diag.Record)
	assert.True(t, diag.Record.Incomplete)
	assert.Equal(t, types.KindTool, diag.Record.Kind)
	assert.Equal(t, "c9", diag.Record.ID)
	assert.Empty(t, diag.Record.Name)
}

func TestParseDiscardsIncompleteEnvelopeWithDiagnostic(t *testing.T) {
	res, err := Parse(`before <mfcs_memory><memory_id>m3</memory_id>`)
	require.NoError(t, err)

	assert.Equal(t, "before ", res.Content)
	assert.Empty(t, res.Calls)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.DiagStructuralIncomplete, res.Diagnostics[0].Code)
	require.NotNil(t, res.Diagnostics[0].Record)
	assert.Equal(t, "m3", res.Diagnostics[0].Record.ID)
	assert.Equal(t, types.KindMemory, res.Diagnostics[0].Record.Kind)
}

func TestEnvelopeCloserRecoversOpenField(t *testing.T) {
	res, err := Parse(`pre <mfcs_call><call_id>r1</call_id><parameters>{"a":1</mfcs_call> post`)
	require.NoError(t, err)

	assert.Equal(t, "pre  post", res.Content)
	require.Len(t, res.Calls, 1)

	call := res.Calls[0]
	assert.Equal(t, "r1", call.ID)
	// The parameters field never terminated, so it contributes no value.
	assert.Empty(t, call.RawParameters)
	assert.Empty(t, call.Parameters)
	assert.Nil(t, call.DecodeError)
	assert.Empty(t, res.Diagnostics)
}

func TestDuplicateFieldPolicies(t *testing.T) {
	input := `<mfcs_call><call_id>first</call_id><call_id>second</call_id><name>f</name></mfcs_call>`

	res, err := Parse(input)
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "second", res.Calls[0].ID)

	res, err = Parse(input, WithDuplicateFieldPolicy(FirstFieldWins))
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "first", res.Calls[0].ID)
}

func TestDuplicateCallIDsAreNotEnforced(t *testing.T) {
	input := `<mfcs_call><call_id>dup</call_id><name>f</name></mfcs_call>` +
		`<mfcs_call><call_id>dup</call_id><name>g</name></mfcs_call>`

	res, err := Parse(input)
	require.NoError(t, err)

	require.Len(t, res.Calls, 2)
	assert.Equal(t, "dup", res.Calls[0].ID)
	assert.Equal(t, "dup", res.Calls[1].ID)
	assert.Empty(t, res.Diagnostics)
}

func TestUnknownTagsInsideEnvelopeAreIgnored(t *testing.T) {
	res, err := Parse(`<mfcs_call><reason>irrelevant</reason><call_id>u1</call_id><name>f</name></mfcs_call>`)
	require.NoError(t, err)

	assert.Empty(t, res.Content)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "u1", res.Calls[0].ID)
	assert.Equal(t, "f", res.Calls[0].Name)
}

func TestUnknownTagsOutsideEnvelopesAreContent(t *testing.T) {
	res, err := Parse(`keep <thinking>this</thinking> and <call_id>that</call_id>`)
	require.NoError(t, err)

	assert.Equal(t, `keep <thinking>this</thinking> and <call_id>that</call_id>`, res.Content)
	assert.Empty(t, res.Calls)
}

func TestMissingFieldsYieldEmptyValues(t *testing.T) {
	res, err := Parse(`<mfcs_call><name>only_name</name></mfcs_call>`)
	require.NoError(t, err)

	require.Len(t, res.Calls, 1)
	call := res.Calls[0]
	assert.Empty(t, call.ID)
	assert.Equal(t, "only_name", call.Name)
	assert.Empty(t, call.Instructions)
	assert.NotNil(t, call.Parameters)
	assert.Empty(t, call.Parameters)
	assert.Nil(t, call.DecodeError)
}

func TestInstructionsFieldIsCaptured(t *testing.T) {
	res, err := Parse(`<mfcs_call><instructions>searching the docs</instructions><call_id>i1</call_id>` +
		`<name>search</name><parameters>{"q":"go"}</parameters></mfcs_call>`)
	require.NoError(t, err)

	require.Len(t, res.Calls, 1)
	assert.Equal(t, "searching the docs", res.Calls[0].Instructions)
}

func TestEmptyParametersPayload(t *testing.T) {
	res, err := Parse(`<mfcs_call><call_id>e</call_id><name>f</name><parameters></parameters></mfcs_call>`)
	require.NoError(t, err)

	require.Len(t, res.Calls, 1)
	call := res.Calls[0]
	assert.NotNil(t, call.Parameters)
	assert.Empty(t, call.Parameters)
	assert.Nil(t, call.DecodeError)
	assert.Empty(t, res.Diagnostics)
}

func TestContentIsNeverTrimmed(t *testing.T) {
	res, err := Parse("  leading and trailing  ")
	require.NoError(t, err)
	assert.Equal(t, "  leading and trailing  ", res.Content)
}

func TestFeedAfterCloseFails(t *testing.T) {
	session := NewSession()
	_, err := session.Close()
	require.NoError(t, err)

	_, err = session.Feed("more")
	assert.True(t, errors.Is(err, ErrSessionClosed))

	_, err = session.Close()
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSessionResetReArms(t *testing.T) {
	session := NewSession()
	_, err := session.Feed(`<mfcs_call><call_id>left`)
	require.NoError(t, err)
	_, err = session.Close()
	require.NoError(t, err)

	session.Reset()

	res, err := session.Feed(singleCallInput)
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "c1", res.Calls[0].ID)

	closed, err := session.Close()
	require.NoError(t, err)
	assert.Empty(t, closed.Diagnostics, "leftover state leaked across Reset")
}

func TestSessionResetDiscardsDirtyState(t *testing.T) {
	session := NewSession()
	_, err := session.Feed(`<mfcs_call><call_id>half`)
	require.NoError(t, err)

	session.Reset()

	res, err := session.Feed("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", res.Content)

	closed, err := session.Close()
	require.NoError(t, err)
	assert.Empty(t, closed.Diagnostics)
}

func TestMaxCallBytesAbandonsRunawayEnvelope(t *testing.T) {
	payload := strings.Repeat("x", 512)
	input := `before <mfcs_call><call_id>big</call_id><parameters>` + payload

	session := NewSession(WithMaxCallBytes(128))
	res, err := session.Feed(input)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.DiagEnvelopeOverflow, res.Diagnostics[0].Code)
	assert.Empty(t, res.Calls)
	assert.True(t, strings.HasPrefix(res.Content, "before <mfcs_call>"),
		"abandoned envelope bytes should return as content, got %q", res.Content)

	// The rest of the runaway keeps passing through as content until its
	// closer arrives; past the closer a later envelope parses again.
	res, err = session.Feed(`still payload </mfcs_call>` + singleCallInput)
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "c1", res.Calls[0].ID)
	assert.Equal(t, "still payload </mfcs_call>Hi  bye", res.Content)
	assert.Empty(t, res.Diagnostics)

	closed, err := session.Close()
	require.NoError(t, err)
	assert.Empty(t, closed.Diagnostics)
}

func TestOverflowPreservesAllBytes(t *testing.T) {
	payload := strings.Repeat("y", 256)
	input := `a <mfcs_call><call_id>v</call_id><parameters>` + payload + `</parameters></mfcs_call> b`

	res, err := Parse(input, WithMaxCallBytes(64))
	require.NoError(t, err)

	assert.Empty(t, res.Calls)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.DiagEnvelopeOverflow, res.Diagnostics[0].Code)
	assert.Equal(t, input, res.Content, "no byte may be lost when an envelope is flushed")
}

func TestEnvelopeAfterOverflowStillParses(t *testing.T) {
	payload := strings.Repeat("x", 300)
	runaway := `<mfcs_call><call_id>big</call_id><parameters>` + payload + `</parameters></mfcs_call>`
	input := `a ` + runaway +
		`<mfcs_call><call_id>ok</call_id><name>g</name><parameters>{"n":2}</parameters></mfcs_call> b`

	oneShot, err := Parse(input, WithMaxCallBytes(64))
	require.NoError(t, err)

	require.Len(t, oneShot.Calls, 1, "the envelope after the abandoned one must still parse")
	assert.Equal(t, "ok", oneShot.Calls[0].ID)
	assert.Equal(t, "g", oneShot.Calls[0].Name)
	require.Len(t, oneShot.Diagnostics, 1)
	assert.Equal(t, types.DiagEnvelopeOverflow, oneShot.Diagnostics[0].Code)
	assert.Equal(t, `a `+runaway+` b`, oneShot.Content)

	// Where the cap trips depends on fragment boundaries; the outcome must not.
	for i := 0; i <= len(input); i++ {
		got := feedAll(t, []string{input[:i], input[i:]}, WithMaxCallBytes(64))
		requireSameOutcome(t, oneShot, got, fmt.Sprintf("split at %d", i))
	}
}

func TestResultMerge(t *testing.T) {
	a := Result{Content: "one ", Calls: []types.CallRecord{{ID: "1"}}}
	b := Result{Content: "two", Calls: []types.CallRecord{{ID: "2"}},
		Diagnostics: []types.Diagnostic{{Code: types.DiagPayloadDecode}}}

	merged := a.Merge(b)

	assert.Equal(t, "one two", merged.Content)
	require.Len(t, merged.Calls, 2)
	assert.Equal(t, "1", merged.Calls[0].ID)
	assert.Equal(t, "2", merged.Calls[1].ID)
	assert.Len(t, merged.Diagnostics, 1)
}
