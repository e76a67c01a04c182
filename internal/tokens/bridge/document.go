package bridge

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
)

// Document is the external CLI's TOML configuration.
//
// The raw bytes are kept so that SetActiveToken can rewrite a single key and
// leave every other line, comment and blank line as the user wrote it.
type Document struct {
	raw    []byte
	values map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: map[string]any{}}
}

// Parse decodes data as a TOML document.
func Parse(data []byte) (*Document, error) {
	values := map[string]any{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCLIConfigParse, err)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Document{raw: raw, values: values}, nil
}

// Bytes returns the serialized document.
func (d *Document) Bytes() []byte {
	return d.raw
}

// ActiveToken returns the string stored at key.
// A missing key yields ok == false; a non-string value yields ErrTokenWrongType.
func (d *Document) ActiveToken(key string) (token string, ok bool, err error) {
	value, present := d.values[key]
	if !present {
		return "", false, nil
	}
	token, isString := value.(string)
	if !isString {
		return "", false, fmt.Errorf("%w: '%s' holds a %T", domain.ErrTokenWrongType, key, value)
	}
	return token, true, nil
}

// SetActiveToken upserts key with a string value.
func (d *Document) SetActiveToken(key, token string) error {
	line, err := encodeKeyValue(key, token)
	if err != nil {
		return err
	}

	current, present := d.values[key]
	_, isString := current.(string)

	var updated []byte
	switch {
	case present && !isString:
		// No byte range is tracked for non-string values; re-encode everything.
		d.values[key] = token
		updated, err = toml.Marshal(d.values)
		if err != nil {
			return fmt.Errorf("%w: encode document: %w", domain.ErrCLIConfigIO, err)
		}
	default:
		l, err := scanTopLevel(d.raw, key)
		if err != nil {
			return err
		}
		if l.match != nil {
			updated = splice(d.raw, l.match.start, l.match.end, line)
		} else {
			updated = insertLine(d.raw, l, line)
		}
	}

	values := map[string]any{}
	if err := toml.Unmarshal(updated, &values); err != nil {
		return fmt.Errorf("%w: updated document: %w", domain.ErrCLIConfigParse, err)
	}
	d.raw = updated
	d.values = values
	return nil
}

func encodeKeyValue(key, token string) ([]byte, error) {
	out, err := toml.Marshal(map[string]string{key: token})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", domain.ErrCLIConfigIO, key, err)
	}
	return bytes.TrimRight(out, "\n"), nil
}

type span struct {
	start int
	end   int
}

// layout describes the top-level section of a document, before any table.
type layout struct {
	// match is the "key = 'value'" span of the string value for the key.
	match *span
	// lastValueEnd is the offset just past the last top-level key/value.
	lastValueEnd int
	// firstTable is the offset of the first table key, or -1.
	firstTable int
}

func scanTopLevel(data []byte, key string) (layout, error) {
	l := layout{firstTable: -1}

	var p unstable.Parser
	p.Reset(data)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			it := expr.Key()
			if it.Next() {
				l.firstTable = int(it.Node().Raw.Offset)
			}
			return l, nil
		case unstable.KeyValue:
			var (
				name     string
				start    int
				end      int
				segments int
			)
			it := expr.Key()
			for it.Next() {
				n := it.Node()
				if segments == 0 {
					name = string(n.Data)
					start = int(n.Raw.Offset)
				}
				end = int(n.Raw.Offset + n.Raw.Length)
				segments++
			}
			value := expr.Value()
			if value.Raw.Length > 0 {
				end = int(value.Raw.Offset + value.Raw.Length)
			}
			l.lastValueEnd = end
			if segments == 1 && name == key && value.Kind == unstable.String {
				l.match = &span{start: start, end: end}
			}
		}
	}
	if err := p.Error(); err != nil {
		return l, fmt.Errorf("%w: %w", domain.ErrCLIConfigParse, err)
	}
	return l, nil
}

func splice(data []byte, start, end int, replacement []byte) []byte {
	out := make([]byte, 0, len(data)-(end-start)+len(replacement))
	out = append(out, data[:start]...)
	out = append(out, replacement...)
	out = append(out, data[end:]...)
	return out
}

// insertLine adds line at the end of the top-level section: after the last
// top-level key, ahead of any comments or blank lines leading into the first
// table. Without tables the line is appended. The inserted line ends the way
// the surrounding lines do.
func insertLine(data []byte, l layout, line []byte) []byte {
	if l.firstTable < 0 {
		eol := lineEnding(data, len(data))
		out := make([]byte, 0, len(data)+len(line)+2*len(eol))
		out = append(out, data...)
		if len(out) > 0 && out[len(out)-1] != '\n' {
			out = append(out, eol...)
		}
		out = append(out, line...)
		return append(out, eol...)
	}

	at := lineStart(data, l.firstTable)
	for at > 0 {
		prev := lineStart(data, at-1)
		if prev < l.lastValueEnd {
			break
		}
		trimmed := bytes.TrimSpace(data[prev:at])
		if len(trimmed) != 0 && trimmed[0] != '#' {
			break
		}
		at = prev
	}

	withNewline := append(append([]byte{}, line...), lineEnding(data, at)...)
	return splice(data, at, at, withNewline)
}

// lineEnding returns "\r\n" when the line break nearest offset, looking
// forward first, is CRLF, and "\n" otherwise.
func lineEnding(data []byte, offset int) []byte {
	nl := bytes.IndexByte(data[offset:], '\n')
	if nl >= 0 {
		nl += offset
	} else {
		nl = bytes.LastIndexByte(data[:offset], '\n')
	}
	if nl > 0 && data[nl-1] == '\r' {
		return []byte("\r\n")
	}
	return []byte("\n")
}

func lineStart(data []byte, offset int) int {
	return bytes.LastIndexByte(data[:offset], '\n') + 1
}
