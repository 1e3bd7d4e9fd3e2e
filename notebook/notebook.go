package notebook

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// CurrentVersion is the only nbformat major version understood here
const CurrentVersion = 4

// defaultMinor is used when a document does not name its minor version.
// 4.4 is the last minor that does not require cell ids.
const defaultMinor = 4

// Cell types
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Output types
const (
	OutputStream        = "stream"
	OutputExecuteResult = "execute_result"
	OutputDisplayData   = "display_data"
	OutputError         = "error"
)

// MimeTextPlain is the mime-bundle key holding a plain text representation
const MimeTextPlain = "text/plain"

// Notebook is an nbformat 4 document
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is a single notebook cell.
//
// Source holds whatever shape the document carried (a string, an array, or
// anything else a client sent) until NormalizeSources turns code cell
// sources into []string.
type Cell struct {
	ID             string         `json:"id,omitempty"`
	CellType       string         `json:"cell_type"`
	Metadata       map[string]any `json:"metadata"`
	Source         any            `json:"source"`
	Attachments    map[string]any `json:"attachments,omitempty"`
	Outputs        []Output       `json:"outputs,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
}

// Output is one entry of a code cell's outputs
type Output struct {
	OutputType     string                     `json:"output_type"`
	Name           string                     `json:"name,omitempty"`
	Text           *MultilineString           `json:"text,omitempty"`
	Data           map[string]json.RawMessage `json:"data,omitempty"`
	Metadata       map[string]any             `json:"metadata,omitempty"`
	ExecutionCount *int                       `json:"execution_count,omitempty"`
	Ename          string                     `json:"ename,omitempty"`
	Evalue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// MultilineString is an nbformat multiline string. It decodes from either a
// JSON string or an array of strings, the latter being concatenated.
type MultilineString string

// UnmarshalJSON implements json.Unmarshaler
func (m *MultilineString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultilineString(s)
		return nil
	}

	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*m = MultilineString(strings.Join(parts, ""))
	return nil
}

// PlainText returns the output's data["text/plain"] entry
func (o *Output) PlainText() (string, bool) {
	raw, ok := o.Data[MimeTextPlain]
	if !ok {
		return "", false
	}

	var text MultilineString
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	return string(text), true
}

// MarshalJSON keeps the fields nbformat requires per cell type: code cells
// always carry outputs and execution_count, other cells carry neither.
func (c Cell) MarshalJSON() ([]byte, error) {
	type plain Cell

	p := plain(c)
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if p.Source == nil {
		p.Source = ""
	}

	if c.CellType != CellTypeCode {
		p.Outputs = nil
		p.ExecutionCount = nil
		return json.Marshal(p)
	}

	outputs := c.Outputs
	if outputs == nil {
		outputs = []Output{}
	}

	return json.Marshal(struct {
		plain
		Outputs        []Output `json:"outputs"`
		ExecutionCount *int     `json:"execution_count"`
	}{
		plain:          p,
		Outputs:        outputs,
		ExecutionCount: c.ExecutionCount,
	})
}

// Marshal serializes the document in the nbformat 4 interchange form
func (nb *Notebook) Marshal() ([]byte, error) {
	out := *nb
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	if out.Cells == nil {
		out.Cells = []Cell{}
	}
	if out.NBFormat == 0 {
		out.NBFormat = CurrentVersion
	}

	// nbformat 4.5 made cell ids mandatory
	if out.NBFormatMinor >= 5 {
		cells := make([]Cell, len(out.Cells))
		copy(cells, out.Cells)
		for i := range cells {
			if cells[i].ID == "" {
				cells[i].ID = uuid.NewString()
			}
		}
		out.Cells = cells
	}

	return json.Marshal(out)
}

// CodeCells returns the number of code cells in the document
func (nb *Notebook) CodeCells() int {
	n := 0
	for i := range nb.Cells {
		if nb.Cells[i].CellType == CellTypeCode {
			n++
		}
	}
	return n
}
