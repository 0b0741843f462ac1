package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
)

const (
	FormatVersion = 1
	DocumentName  = "arcaluminis-matrix"
)

// Document is the portable export format:
//
//	{"format_version": 1, "name": "...",
//	 "namespaces": {"matrix": {"brightness": {"type": "uint8", "value": 128}}}}
type Document struct {
	FormatVersion int                         `json:"format_version"`
	Name          string                      `json:"name,omitempty"`
	Namespaces    map[string]map[string]Value `json:"namespaces"`
}

type ExportOptions struct {
	// AllowBlob exports blob values as base64. When false a blob fails the
	// export with errs.Unsupported.
	AllowBlob bool
}

var DefaultExportOptions = ExportOptions{AllowBlob: true}

func NewDocument(ns map[string]map[string]Value) Document {
	return Document{FormatVersion: FormatVersion, Name: DocumentName, Namespaces: ns}
}

func (d Document) Encode(opts ExportOptions) ([]byte, error) {
	for ns, keys := range d.Namespaces {
		for key, v := range keys {
			if err := v.Check(); err != nil {
				return nil, errs.E(errs.InvalidArgument, "Document.Encode", "%s/%s: %v", ns, key, err)
			}
			if v.T == Blob && !opts.AllowBlob {
				return nil, errs.E(errs.Unsupported, "Document.Encode", "%s/%s: blob export disabled", ns, key)
			}
		}
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "Document.Encode", err)
	}
	return b, nil
}

// Decode parses and validates a whole document. Any bad entry fails it.
func Decode(data []byte) (Document, error) {
	const op = "persist.Decode"
	var d Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		if errs.KindOf(err) == errs.Other {
			err = errs.Wrap(errs.InvalidArgument, op, err)
		}
		return Document{}, err
	}
	if d.FormatVersion != FormatVersion {
		return Document{}, errs.E(errs.Unsupported, op, "format_version %d", d.FormatVersion)
	}
	if d.Namespaces == nil {
		return Document{}, errs.E(errs.InvalidArgument, op, "namespaces missing")
	}
	return d, nil
}

// Record extracts the matrix settings from d.
func (d Document) Record() (Record, error) {
	return recordFrom(func(ns, key string, t Type) (Value, error) {
		return lookup(d.Namespaces, ns, key, t)
	})
}

// Export serializes the live settings of m.
func Export(m *matrix.Matrix, opts ExportOptions) ([]byte, error) {
	return NewDocument(Capture(m).Entries()).Encode(opts)
}

// Import applies an exported document to m, all or nothing.
func Import(m *matrix.Matrix, data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	r, err := d.Record()
	if err != nil {
		return err
	}
	return r.ApplyTo(m)
}

// ExportStore serializes every entry of s.
func ExportStore(s Store, opts ExportOptions) ([]byte, error) {
	dump, err := s.Dump()
	if err != nil {
		return nil, err
	}
	return NewDocument(dump).Encode(opts)
}

// ImportStore writes every entry of an exported document into s. The
// document is fully validated before the first Set.
func ImportStore(s Store, data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	for _, ns := range Namespaces(d.Namespaces) {
		for key, v := range d.Namespaces[ns] {
			if err := s.Set(ns, key, v); err != nil {
				return err
			}
		}
	}
	return s.Commit()
}

func WriteFile(path string, data []byte) error {
	if err := writeAtomic(path, data); err != nil {
		return errs.Wrap(errs.IOFailure, "persist.WriteFile", err)
	}
	return nil
}

func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.NotFound, "persist.ReadFile", err)
	}
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, "persist.ReadFile", err)
	}
	return b, nil
}
