package flex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// ErrValidation is wrapped by every *ValidationError
var ErrValidation = errors.New("invalid flex message")

// ValidationError lists everything wrong with a flex document
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error

	validate = newValidator()
)

func flexSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(Schema))
	})
	return compiledSchema, schemaErr
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// combinatorErrors only say that a sub-schema failed; the error naming the
// offending field is reported alongside them.
var combinatorErrors = map[string]bool{
	"number_all_of":  true,
	"number_any_of":  true,
	"number_one_of":  true,
	"condition_then": true,
	"condition_else": true,
}

// Validate checks a JSON document against the flex schema and then the
// layout rules of the decoded value. It accepts a flex message or a bare
// bubble or carousel.
func Validate(data []byte) error {
	_, err := Decode(data)
	return err
}

// Decode validates data like Validate and returns the typed value: a
// *Message, *Bubble or *Carousel.
func Decode(data []byte) (interface{}, error) {
	s, err := flexSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile flex schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &ValidationError{Problems: []string{"malformed JSON: " + err.Error()}}
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			if combinatorErrors[e.Type()] {
				continue
			}
			problems = append(problems, e.String())
		}
		if len(problems) == 0 {
			problems = append(problems, result.Errors()[0].String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	kind, err := peekType(data)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	var v interface{}
	switch kind {
	case "flex":
		v = &Message{}
	case "bubble":
		v = &Bubble{}
	default:
		v = &Carousel{}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	if err := ValidateValue(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateValue checks a built message, bubble or carousel against the
// layout rules
func ValidateValue(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ValidationError{Problems: []string{err.Error()}}
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			problems = append(problems, fmt.Sprintf("%s: failed %s", trimRoot(fe.Namespace()), rule))
		}
		return &ValidationError{Problems: problems}
	}
	return nil
}

// trimRoot drops the Go type name validator puts in front of a namespace
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Export encodes v as indented JSON
func Export(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export flex JSON: %w", err)
	}
	return data, nil
}

// Print writes v as indented JSON followed by a newline. Raw JSON given as
// []byte or json.RawMessage is re-indented as is.
func Print(w io.Writer, v interface{}) error {
	var out []byte
	switch raw := v.(type) {
	case []byte:
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("failed to format flex JSON: %w", err)
		}
		out = buf.Bytes()
	case json.RawMessage:
		return Print(w, []byte(raw))
	default:
		data, err := Export(v)
		if err != nil {
			return err
		}
		out = data
	}

	out = append(out, '\n')
	_, err := w.Write(out)
	return err
}
