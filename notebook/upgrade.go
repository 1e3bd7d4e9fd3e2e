package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// legacyVersion is the one older major version Reads can upgrade from
const legacyVersion = 3

// v3 output mime keys and their v4 mime types
var v3MimeTypes = map[string]string{
	"text":       MimeTextPlain,
	"html":       "text/html",
	"svg":        "image/svg+xml",
	"png":        "image/png",
	"jpeg":       "image/jpeg",
	"latex":      "text/latex",
	"javascript": "application/javascript",
	"json":       "application/json",
	"pdf":        "application/pdf",
}

// declaredVersion returns the nbformat major version a document names, or
// zero when it names none or is not an object.
func declaredVersion(data []byte) int {
	var head struct {
		NBFormat json.Number `json:"nbformat"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0
	}
	v, err := head.NBFormat.Int64()
	if err != nil {
		return 0
	}
	return int(v)
}

// upgradeV3 rewrites a serialized nbformat 3 document as nbformat 4.
// Worksheets are flattened, code cell input and prompt numbers become
// source and execution_count, heading cells become markdown and v3 output
// shapes are mapped onto their v4 equivalents.
func upgradeV3(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid notebook document: %w", err)
	}

	metadata, _ := doc["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}
	delete(metadata, "name")
	delete(metadata, "signature")
	metadata["orig_nbformat"] = legacyVersion

	cells := []any{}
	worksheets, _ := doc["worksheets"].([]any)
	for _, ws := range worksheets {
		sheet, ok := ws.(map[string]any)
		if !ok {
			continue
		}
		sheetCells, _ := sheet["cells"].([]any)
		for i, c := range sheetCells {
			cell, ok := c.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid notebook document: worksheet cell %d is not an object", i)
			}
			cells = append(cells, upgradeCellV3(cell))
		}
	}

	upgraded := map[string]any{
		"cells":          cells,
		"metadata":       metadata,
		"nbformat":       CurrentVersion,
		"nbformat_minor": defaultMinor,
	}
	return json.Marshal(upgraded)
}

func upgradeCellV3(cell map[string]any) map[string]any {
	metadata, _ := cell["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}

	switch cell["cell_type"] {
	case CellTypeCode:
		if collapsed, ok := cell["collapsed"]; ok {
			metadata["collapsed"] = collapsed
		}
		source, ok := cell["input"]
		if !ok {
			source = ""
		}

		outputs := []any{}
		if v3Outputs, ok := cell["outputs"].([]any); ok {
			for _, o := range v3Outputs {
				if out, ok := o.(map[string]any); ok {
					outputs = append(outputs, upgradeOutputV3(out))
				}
			}
		}

		return map[string]any{
			"cell_type":       CellTypeCode,
			"metadata":        metadata,
			"source":          source,
			"execution_count": cell["prompt_number"],
			"outputs":         outputs,
		}

	case "heading":
		level := 1
		if n, ok := cell["level"].(json.Number); ok {
			if v, err := n.Int64(); err == nil && v > 0 {
				level = int(v)
			}
		}
		text := strings.Join(strings.Fields(flattenSource(cell["source"])), " ")
		return map[string]any{
			"cell_type": CellTypeMarkdown,
			"metadata":  metadata,
			"source":    strings.Repeat("#", level) + " " + text,
		}

	default:
		cell["metadata"] = metadata
		return cell
	}
}

func upgradeOutputV3(out map[string]any) map[string]any {
	metadata, _ := out["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}

	switch out["output_type"] {
	case "pyout", OutputDisplayData:
		data := map[string]any{}
		for key, mime := range v3MimeTypes {
			if v, ok := out[key]; ok {
				data[mime] = v
			}
		}
		upgraded := map[string]any{
			"output_type": OutputDisplayData,
			"data":        data,
			"metadata":    metadata,
		}
		if out["output_type"] == "pyout" {
			upgraded["output_type"] = OutputExecuteResult
			upgraded["execution_count"] = out["prompt_number"]
		}
		return upgraded

	case "pyerr":
		return map[string]any{
			"output_type": OutputError,
			"ename":       out["ename"],
			"evalue":      out["evalue"],
			"traceback":   out["traceback"],
		}

	case OutputStream:
		name, _ := out["stream"].(string)
		if name == "" {
			name = "stdout"
		}
		return map[string]any{
			"output_type": OutputStream,
			"name":        name,
			"text":        out["text"],
		}

	default:
		return out
	}
}

// flattenSource flattens a string or list-of-strings source
func flattenSource(v any) string {
	switch src := v.(type) {
	case string:
		return src
	case []any:
		var b strings.Builder
		for _, line := range src {
			b.WriteString(stringify(line))
		}
		return b.String()
	default:
		return ""
	}
}
