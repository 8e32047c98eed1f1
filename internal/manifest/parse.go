package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v3"
)

// ParseError reports a document that could not be turned into an Object.
type ParseError struct {
	// Source names the input that held the document
	Source string
	// Document is the one based position of the document in Source
	Document int
	// Err is the underlying error
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: document %d: %v", e.Source, e.Document, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse turns raw YAML inputs into Objects. Each input may hold several documents
// separated by `---`. Empty documents are skipped. Any document that is not a
// mapping at the top level fails the whole call, so callers never see a partially
// parsed set.
func Parse(inputs ...[]byte) ([]*Object, error) {
	var objects []*Object
	for i, input := range inputs {
		parsed, err := ParseReader(fmt.Sprintf("input-%d", i+1), bytes.NewReader(input))
		if err != nil {
			return nil, err
		}
		objects = append(objects, parsed...)
	}
	return objects, nil
}

// ParseReader parses a multi-document YAML stream read from r. source is used in
// error messages and recorded on every Object.
func ParseReader(source string, r io.Reader) ([]*Object, error) {
	decoder := yaml.NewDecoder(r)
	objects := make([]*Object, 0)

	for docNum := 0; ; docNum++ {
		doc := &yaml.Node{}
		err := decoder.Decode(doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Source: source, Document: docNum + 1, Err: err}
		}

		if isEmptyDocument(doc) {
			continue
		}

		obj, err := newObject(source, len(objects), doc)
		if err != nil {
			return nil, &ParseError{Source: source, Document: docNum + 1, Err: err}
		}
		objects = append(objects, obj)
	}

	return objects, nil
}
