// Package importer reads test definitions written as YAML documents.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// MaxDocumentSize caps the accepted YAML document at 1 MiB
const MaxDocumentSize = 1 << 20

var ErrInvalidDocument = errors.New("invalid test document")

// Parse decodes a single YAML test document. Unknown keys are rejected so typos
// do not silently drop settings. A non-zero courseID overrides the document's course_id.
//
//	title: Midterm exam
//	description: Covers chapters one to four
//	settings:
//	  time_limit: 45
//	questions:
//	  - text: Zero is even
//	    type: true-false
//	    points: 1
//	    options:
//	      - {text: "True", is_correct: true}
//	      - {text: "False"}
func Parse(r io.Reader, courseID uint) (*validator.CreateTestRequest, error) {
	limited := io.LimitReader(r, MaxDocumentSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read test document: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidDocument, MaxDocumentSize)
	}

	var req validator.CreateTestRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if courseID != 0 {
		req.CourseID = courseID
	}
	return &req, nil
}
