// Package feed parses RSS and Atom documents into hierarchical values.
//
// This package enables feedex to:
// - Delegate RSS and Atom grammars to github.com/mmcdole/gofeed
// - Sniff the feed kind of an unknown document
// - Turn every parser failure, including library panics, into a ParseError
package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"github.com/gauthierbraillon/feedex/internal/value"
)

// Kind selects a feed grammar.
type Kind string

const (
	KindRSS     Kind = "rss"
	KindAtom    Kind = "atom"
	KindUnknown Kind = "unknown"
)

// ErrUnknownKind is returned for kinds other than rss, atom and auto.
var ErrUnknownKind = errors.New("unknown feed kind")

// ParseKind parses a kind name. "auto" yields KindUnknown, meaning the kind
// is detected from the document.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rss":
		return KindRSS, nil
	case "atom":
		return KindAtom, nil
	case "auto":
		return KindUnknown, nil
	}
	return "", fmt.Errorf("%w %q: must be 'rss', 'atom' or 'auto'", ErrUnknownKind, name)
}

// Origin tags where a ParseError was raised.
type Origin string

const (
	OriginRSS    Origin = "RssParse"
	OriginAtom   Origin = "AtomParse"
	OriginEncode Origin = "EncodeFailure"
)

// ParseError is a parse failure. It never carries a partial document.
type ParseError struct {
	Origin  Origin
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Origin, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Detect reports the grammar of raw using gofeed's root element sniffing.
func Detect(raw string) Kind {
	switch gofeed.DetectFeedType(strings.NewReader(raw)) {
	case gofeed.FeedTypeRSS:
		return KindRSS
	case gofeed.FeedTypeAtom:
		return KindAtom
	}
	return KindUnknown
}

// Parse parses raw with the grammar of kind. KindUnknown detects the kind
// first and fails when the document is neither RSS nor Atom.
func Parse(kind Kind, raw string) (value.Value, error) {
	switch kind {
	case KindRSS:
		return ParseRSS(raw)
	case KindAtom:
		return ParseAtom(raw)
	case KindUnknown:
		detected := Detect(raw)
		if detected == KindUnknown {
			return value.Value{}, &ParseError{
				Origin:  OriginRSS,
				Message: "document is neither an RSS nor an Atom feed",
			}
		}
		return Parse(detected, raw)
	}
	return value.Value{}, fmt.Errorf("%w %q", ErrUnknownKind, string(kind))
}

// ParseRSS parses an RSS 0.9x/1.0/2.0 document into {"channel": {...}}.
func ParseRSS(raw string) (v value.Value, err error) {
	defer recoverInto(OriginRSS, &err)

	parser := &rss.Parser{}
	channel, perr := parser.Parse(strings.NewReader(raw))
	if perr != nil {
		return value.Value{}, &ParseError{
			Origin:  OriginRSS,
			Message: fmt.Sprintf("Unable to parse RSS - (%v)", perr),
			Cause:   perr,
		}
	}
	return wrap("channel", channel)
}

// ParseAtom parses an Atom 0.3/1.0 document into {"feed": {...}}.
func ParseAtom(raw string) (v value.Value, err error) {
	defer recoverInto(OriginAtom, &err)

	parser := &atom.Parser{}
	doc, perr := parser.Parse(strings.NewReader(raw))
	if perr != nil {
		return value.Value{}, &ParseError{
			Origin:  OriginAtom,
			Message: perr.Error(),
			Cause:   perr,
		}
	}
	return wrap("feed", doc)
}

func wrap(key string, doc any) (value.Value, error) {
	body, err := value.FromGo(doc)
	if err != nil {
		return value.Value{}, &ParseError{
			Origin:  OriginEncode,
			Message: fmt.Sprintf("failed to convert parsed %s: %v", key, err),
			Cause:   err,
		}
	}
	return value.FromMap(value.Entry{Key: key, Value: body})
}

func recoverInto(origin Origin, err *error) {
	if r := recover(); r != nil {
		*err = &ParseError{
			Origin:  origin,
			Message: fmt.Sprintf("parser panicked: %v", r),
		}
	}
}
