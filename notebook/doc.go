// Package notebook models Jupyter notebook documents in nbformat 4.
//
// Documents are read either from an already decoded JSON object
// (FromObject) or from their serialized interchange form (Reads). Before a
// document is handed to an execution engine its code cell sources are
// coerced into ordered sequences of strings (NormalizeSources), and once the
// engine has attached outputs the textual results are gathered with
// CollectOutput.
//
// Usage:
//
//	nb, err := notebook.Reads(payload, notebook.CurrentVersion)
//	if err != nil {
//	    return err
//	}
//	nb.NormalizeSources()
//	data, err := nb.Marshal()
package notebook
