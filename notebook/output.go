package notebook

import "strings"

// Fragments gathers the textual outputs of all code cells in document
// order. Each output contributes its text if present, else its
// data["text/plain"] if present; other outputs are skipped.
func (nb *Notebook) Fragments() []string {
	var fragments []string
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if cell.CellType != CellTypeCode {
			continue
		}
		for j := range cell.Outputs {
			out := &cell.Outputs[j]
			if out.Text != nil {
				fragments = append(fragments, string(*out.Text))
				continue
			}
			if text, ok := out.PlainText(); ok {
				fragments = append(fragments, text)
			}
		}
	}
	return fragments
}

// CollectOutput joins the document's output fragments with newlines
func (nb *Notebook) CollectOutput() string {
	return strings.Join(nb.Fragments(), "\n")
}
