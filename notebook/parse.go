package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotObject is returned when a document is not a JSON object
var ErrNotObject = errors.New("notebook document must be a JSON object")

// FromObject builds a document from an already decoded JSON object.
// Missing version fields default to nbformat 4.4.
func FromObject(raw json.RawMessage) (*Notebook, error) {
	nb, err := decode(raw)
	if err != nil {
		return nil, err
	}

	if nb.NBFormat == 0 {
		nb.NBFormat = CurrentVersion
		if nb.NBFormatMinor == 0 {
			nb.NBFormatMinor = defaultMinor
		}
	}
	if nb.NBFormat != CurrentVersion {
		return nil, fmt.Errorf("unsupported nbformat version %d, expected %d", nb.NBFormat, CurrentVersion)
	}

	return nb, nil
}

// Reads parses a serialized notebook. The document must declare its major
// version; only CurrentVersion may be requested, and nbformat 3 documents
// are upgraded to it.
func Reads(s string, asVersion int) (*Notebook, error) {
	if asVersion != CurrentVersion {
		return nil, fmt.Errorf("cannot read notebook as version %d, only version %d is supported", asVersion, CurrentVersion)
	}

	data := []byte(s)
	if declaredVersion(data) == legacyVersion {
		upgraded, err := upgradeV3(data)
		if err != nil {
			return nil, err
		}
		data = upgraded
	}

	nb, err := decode(data)
	if err != nil {
		return nil, err
	}

	if nb.NBFormat == 0 {
		return nil, errors.New("notebook does not declare an nbformat version")
	}
	if nb.NBFormat != asVersion {
		return nil, fmt.Errorf("unsupported nbformat version %d, expected %d", nb.NBFormat, asVersion)
	}

	return nb, nil
}

func decode(data []byte) (*Notebook, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	// Numbers are kept as json.Number so stringified sources keep their
	// literal spelling.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var nb Notebook
	if err := dec.Decode(&nb); err != nil {
		return nil, fmt.Errorf("invalid notebook document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid notebook document: trailing data after document")
	}

	for i := range nb.Cells {
		if nb.Cells[i].CellType == "" {
			return nil, fmt.Errorf("invalid notebook document: cell %d has no cell_type", i)
		}
	}

	return &nb, nil
}

// NormalizeSources coerces every code cell's source into an ordered
// sequence of strings. Arrays have each element stringified; any other
// value becomes a one-element sequence.
func (nb *Notebook) NormalizeSources() {
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if cell.CellType != CellTypeCode {
			continue
		}

		switch src := cell.Source.(type) {
		case []string:
			// already normalized
		case []any:
			lines := make([]string, len(src))
			for j, v := range src {
				lines[j] = stringify(v)
			}
			cell.Source = lines
		default:
			cell.Source = []string{stringify(src)}
		}
	}
}

// SourceText returns a cell's source as a single string
func (c *Cell) SourceText() string {
	switch src := c.Source.(type) {
	case []string:
		return strings.Join(src, "")
	case []any:
		var b strings.Builder
		for _, v := range src {
			b.WriteString(stringify(v))
		}
		return b.String()
	default:
		return stringify(src)
	}
}

// stringify renders a decoded JSON value as text. Strings, numbers, booleans
// and null read the way Python's str() prints them; arrays and objects are
// rendered as compact JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
