// Package display renders transcoded documents as a terminal outline.
package display

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/net/html"

	"github.com/gauthierbraillon/feedex/internal/transcode"
	"github.com/gauthierbraillon/feedex/internal/value"
)

const (
	indentUnit      = "  "
	defaultMaxWidth = 80
	parsedSuffix    = "Parsed"
)

// IsTerminal reports whether f is an interactive terminal that accepts color.
// Setting NO_COLOR disables color regardless of the terminal.
func IsTerminal(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// OutlineOption configures an Outline.
type OutlineOption func(*Outline)

// WithColor turns ANSI colors on or off.
func WithColor(enabled bool) OutlineOption {
	return func(o *Outline) {
		o.color = enabled
	}
}

// WithMaxWidth truncates text values longer than n runes.
func WithMaxWidth(n int) OutlineOption {
	return func(o *Outline) {
		if n > 0 {
			o.maxWidth = n
		}
	}
}

// WithClock sets the time source used for relative timestamps.
func WithClock(now func() time.Time) OutlineOption {
	return func(o *Outline) {
		o.now = now
	}
}

type frame struct {
	isMap bool
	key   string
	keyed bool
	index int
}

// Outline is a Sink that renders one line per scalar and one header line per
// nested collection. Keys of timestamps parsed by the feed parser (ending in
// "Parsed") also show the relative age.
type Outline struct {
	b        strings.Builder
	stack    []*frame
	done     bool
	color    bool
	maxWidth int
	now      func() time.Time

	keyColor, textColor, numberColor, literalColor, mutedColor *color.Color
}

var _ transcode.Sink[string] = (*Outline)(nil)

// NewOutline creates an outline renderer. Colors are off unless WithColor
// enables them.
func NewOutline(opts ...OutlineOption) *Outline {
	o := &Outline{
		maxWidth: defaultMaxWidth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.keyColor = o.newColor(color.FgCyan, color.Bold)
	o.textColor = o.newColor(color.FgGreen)
	o.numberColor = o.newColor(color.FgYellow)
	o.literalColor = o.newColor(color.FgMagenta)
	o.mutedColor = o.newColor(color.Faint)
	return o
}

func (o *Outline) newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if o.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// label returns the key or index of the next child of the innermost
// collection. The root has no label.
func (o *Outline) label() (string, bool, error) {
	if len(o.stack) == 0 {
		if o.done {
			return "", false, errors.New("value emitted after root was complete")
		}
		o.done = true
		return "", false, nil
	}
	top := o.stack[len(o.stack)-1]
	if top.isMap {
		if !top.keyed {
			return "", false, errors.New("map value emitted without a key")
		}
		top.keyed = false
		return o.keyColor.Sprint(top.key), true, nil
	}
	l := o.mutedColor.Sprintf("[%d]", top.index)
	top.index++
	return l, true, nil
}

func (o *Outline) indent() string {
	if len(o.stack) == 0 {
		return ""
	}
	return strings.Repeat(indentUnit, len(o.stack)-1)
}

func (o *Outline) scalar(rendered string) error {
	label, labelled, err := o.label()
	if err != nil {
		return err
	}
	if labelled {
		fmt.Fprintf(&o.b, "%s%s: %s\n", o.indent(), label, rendered)
		return nil
	}
	o.b.WriteString(rendered + "\n")
	return nil
}

func (o *Outline) Null() error {
	return o.scalar(o.literalColor.Sprint("null"))
}

func (o *Outline) Bool(b bool) error {
	return o.scalar(o.literalColor.Sprint(b))
}

func (o *Outline) Number(n value.Number) error {
	return o.scalar(o.numberColor.Sprint(n.String()))
}

func (o *Outline) String(s string) error {
	if s == "" {
		return o.scalar(o.mutedColor.Sprint(`""`))
	}
	rendered := o.textColor.Sprint(TruncateText(PlainText(s), o.maxWidth))
	if key := o.pendingKey(); strings.HasSuffix(key, parsedSuffix) {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			rendered += o.mutedColor.Sprintf(" (%s)", FormatTimestamp(t, o.now()))
		}
	}
	return o.scalar(rendered)
}

func (o *Outline) pendingKey() string {
	if len(o.stack) == 0 {
		return ""
	}
	if top := o.stack[len(o.stack)-1]; top.isMap && top.keyed {
		return top.key
	}
	return ""
}

func (o *Outline) begin(isMap bool, n int) error {
	label, labelled, err := o.label()
	if err != nil {
		return err
	}
	unit := "item"
	if isMap {
		unit = "field"
	}
	summary := o.mutedColor.Sprintf("(%s)", count(n, unit))
	switch {
	case labelled:
		fmt.Fprintf(&o.b, "%s%s %s\n", o.indent(), label, summary)
	case n == 0:
		o.b.WriteString(summary + "\n")
	}
	o.stack = append(o.stack, &frame{isMap: isMap})
	return nil
}

func (o *Outline) BeginSequence(n int) error { return o.begin(false, n) }

func (o *Outline) EndSequence() error { return o.end(false) }

func (o *Outline) BeginMap(n int) error { return o.begin(true, n) }

func (o *Outline) Key(k string) error {
	if len(o.stack) == 0 || !o.stack[len(o.stack)-1].isMap {
		return fmt.Errorf("key %q outside of a map", k)
	}
	top := o.stack[len(o.stack)-1]
	top.key = k
	top.keyed = true
	return nil
}

func (o *Outline) EndMap() error { return o.end(true) }

func (o *Outline) end(isMap bool) error {
	if len(o.stack) == 0 || o.stack[len(o.stack)-1].isMap != isMap {
		return errors.New("collection end does not match its begin")
	}
	o.stack = o.stack[:len(o.stack)-1]
	return nil
}

// Result returns the rendered outline.
func (o *Outline) Result() (string, error) {
	if !o.done || len(o.stack) > 0 {
		return "", errors.New("document is incomplete")
	}
	return o.b.String(), nil
}

// FormatTimestamp formats t relative to now.
func FormatTimestamp(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	return count(n, unit) + " ago"
}

func count(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// PlainText flattens s to a single line. Markup found in descriptions and
// content is reduced to its text with entities decoded.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
