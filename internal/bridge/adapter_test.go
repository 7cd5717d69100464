// Package bridge tests document the boundary contract seen by a host runtime.
//
// Test requirements (this file serves as documentation):
// - Valid feeds produce host-native values and no failure
// - Malformed feeds produce ParseFailure with the parser's diagnostic
// - Transcoding problems produce TranscodeFailure, never a partial value
// - Panics inside a sink are reported as failures
// - Adapters are safe for concurrent use
package bridge

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gauthierbraillon/feedex/internal/feed"
	"github.com/gauthierbraillon/feedex/internal/sink/jsonsink"
	"github.com/gauthierbraillon/feedex/internal/value"
)

const minimalRSS = `<rss><channel><title>T</title><item><title>I1</title></item></channel></rss>`

const minimalAtom = `<feed xmlns="http://www.w3.org/2005/Atom"><title>A</title><entry><title>E1</title></entry></feed>`

func TestAC500_ParseRSS_ReturnsHostValue(t *testing.T) {
	out := ParseRSS(minimalRSS)

	if !out.OK() {
		t.Fatalf("user should get a value, got failure: %v", out.Err)
	}
	want := map[string]any{
		"channel": map[string]any{
			"title":   "T",
			"items":   []any{map[string]any{"title": "I1"}},
			"version": "",
		},
	}
	if diff := cmp.Diff(want, out.Value); diff != "" {
		t.Errorf("host value mismatch (-want +got):\n%s", diff)
	}
}

func TestAC500_ParseAtom_ReturnsHostValue(t *testing.T) {
	out := ParseAtom(minimalAtom)

	if !out.OK() {
		t.Fatalf("user should get a value, got failure: %v", out.Err)
	}
	root := out.Value.(map[string]any)
	fd := root["feed"].(map[string]any)
	if fd["title"] != "A" {
		t.Errorf("feed title should be A, got %v", fd["title"])
	}
	entries := fd["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["title"] != "E1" {
		t.Errorf("feed should hold entry E1, got %v", entries)
	}
}

func TestAC501_ParseRSS_MalformedInputIsParseFailure(t *testing.T) {
	out := ParseRSS("not xml")

	if out.OK() {
		t.Fatalf("malformed input should fail, got value %v", out.Value)
	}
	if out.Value != nil {
		t.Error("failure should not carry a value")
	}
	if out.Err.Tag != TagParse {
		t.Errorf("tag should be ParseFailure, got %s", out.Err.Tag)
	}
	if !strings.HasPrefix(out.Err.Message, "Unable to parse RSS") {
		t.Errorf("message should carry the parser diagnostic, got %q", out.Err.Message)
	}
}

func TestAC501_ParseAtom_EmptyFeedNeverPanics(t *testing.T) {
	out := ParseAtom("<feed></feed>")

	if !out.OK() && out.Err.Tag != TagParse {
		t.Errorf("empty feed should either parse or fail with ParseFailure, got %s", out.Err.Tag)
	}
}

func TestAC502_Adapter_DepthGuardIsTranscodeFailure(t *testing.T) {
	a := NewAdapter(WithMaxDepth(2))

	out := a.ParseRSS(minimalRSS)

	if out.OK() {
		t.Fatal("document nested deeper than the limit should fail")
	}
	if out.Err.Tag != TagTranscode {
		t.Errorf("tag should be TranscodeFailure, got %s", out.Err.Tag)
	}
	if !strings.Contains(out.Err.Message, "too_deep") {
		t.Errorf("message should name the depth problem, got %q", out.Err.Message)
	}
}

type panickingSink struct{}

func (panickingSink) Null() error { return nil }
func (panickingSink) Bool(bool) error { return nil }
func (panickingSink) Number(value.Number) error { return nil }
func (panickingSink) String(string) error { panic("sink exploded") }
func (panickingSink) BeginSequence(int) error { return nil }
func (panickingSink) EndSequence() error { return nil }
func (panickingSink) BeginMap(int) error { return nil }
func (panickingSink) Key(string) error { return nil }
func (panickingSink) EndMap() error { return nil }
func (panickingSink) Result() (struct{}, error) { return struct{}{}, nil }

func TestAC503_Convert_RecoversSinkPanic(t *testing.T) {
	_, fail := Convert[struct{}](NewAdapter(), feed.KindRSS, minimalRSS, panickingSink{})

	if fail == nil {
		t.Fatal("panicking sink should produce a failure")
	}
	if fail.Tag != TagTranscode || !strings.Contains(fail.Message, "sink exploded") {
		t.Errorf("panic should be reported as TranscodeFailure, got %v", fail)
	}
}

func TestAC503_FeedErrors_TaggedByStage(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Tag
	}{
		{"rss grammar", &feed.ParseError{Origin: feed.OriginRSS, Message: "bad rss"}, TagParse},
		{"atom grammar", &feed.ParseError{Origin: feed.OriginAtom, Message: "bad atom"}, TagParse},
		{"encode", &feed.ParseError{Origin: feed.OriginEncode, Message: "cannot convert"}, TagTranscode},
		{"wrapped encode", fmt.Errorf("failed to parse: %w", &feed.ParseError{Origin: feed.OriginEncode, Message: "cannot convert"}), TagTranscode},
		{"unknown kind", feed.ErrUnknownKind, TagParse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fail := feedFailure(tc.err)

			if fail.Tag != tc.want {
				t.Errorf("want tag %s, got %s (%s)", tc.want, fail.Tag, fail.Message)
			}
		})
	}
}

func TestAC504_Convert_WritesJSON(t *testing.T) {
	var buf bytes.Buffer

	n, fail := Convert[int](NewAdapter(), feed.KindUnknown, minimalRSS, jsonsink.New(&buf))

	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	want := `{"channel":{"title":"T","items":[{"title":"I1"}],"version":""}}`
	if buf.String() != want || n != len(want) {
		t.Errorf("want %s (%d bytes)\ngot  %s (%d bytes)", want, len(want), buf.String(), n)
	}
}

func TestAC505_Adapter_LogsEachCall(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := NewAdapter(WithLogger(zap.New(core)))

	a.ParseRSS(minimalRSS)
	a.ParseRSS("not xml")

	failed := logs.FilterMessage("convert failed").All()
	if len(failed) != 1 {
		t.Fatalf("one failed call should be logged, got %d", len(failed))
	}
	fields := failed[0].ContextMap()
	if fields["tag"] != string(TagParse) || fields["call"] == "" {
		t.Errorf("failure log should carry tag and call id, got %v", fields)
	}
	if logs.FilterMessage("convert finished").Len() != 1 {
		t.Error("successful call should be logged")
	}
}

func TestAC506_Adapter_IsSafeForConcurrentUse(t *testing.T) {
	a := NewAdapter()
	var wg sync.WaitGroup
	errs := make(chan string, 64)

	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if out := a.ParseRSS(minimalRSS); !out.OK() {
				errs <- out.Err.Error()
			}
		}()
		go func() {
			defer wg.Done()
			if out := a.ParseAtom("not xml"); out.OK() {
				errs <- "malformed Atom should fail"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
