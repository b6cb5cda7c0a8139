package ringstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v2"
)

// Codec turns objects into bytes and back.
//
// Decode fills v, a fresh instance from [Config.New]. Errors wrapping
// [ErrTypeMismatch] are classified as type mismatches; every other error is a
// decode failure. Decode must not retain r.
type Codec[T Object] interface {
	Encode(w io.Writer, v T) error
	Decode(r io.Reader, v T) error
}

// JSONCodec encodes indented JSON. Decoding accepts JSONC (comments and
// trailing commas), so hand-edited ring files still load.
type JSONCodec[T Object] struct {
	// DisallowUnknownFields reports unknown fields as a type mismatch.
	DisallowUnknownFields bool
}

// Encode writes v as indented JSON followed by a newline.
func (JSONCodec[T]) Encode(w io.Writer, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	data = append(data, '\n')

	_, err = w.Write(data)

	return err
}

// Decode reads a JSON or JSONC document into v.
func (c JSONCodec[T]) Decode(r io.Reader, v T) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	trimmed := bytes.TrimSpace(standardized)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: top-level JSON value is not an object", ErrTypeMismatch)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if c.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}

	err = dec.Decode(v)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) || isUnknownFieldErr(err) {
			return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}

		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

// isUnknownFieldErr matches the untyped error from json.Decoder.DisallowUnknownFields.
func isUnknownFieldErr(err error) bool {
	return strings.HasPrefix(err.Error(), "json: unknown field")
}

// YAMLCodec encodes YAML documents.
type YAMLCodec[T Object] struct {
	// Strict rejects unknown and duplicate fields as a type mismatch.
	Strict bool
}

// Encode writes v as a YAML document.
func (YAMLCodec[T]) Encode(w io.Writer, v T) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	_, err = w.Write(data)

	return err
}

// Decode reads a YAML document into v.
func (c YAMLCodec[T]) Decode(r io.Reader, v T) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if c.Strict {
		err = yaml.UnmarshalStrict(raw, v)
	} else {
		err = yaml.Unmarshal(raw, v)
	}

	if err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}

		return fmt.Errorf("invalid YAML: %w", err)
	}

	return nil
}

// SnappyCodec compresses the output of Inner with the snappy framing format.
type SnappyCodec[T Object] struct {
	Inner Codec[T]
}

// Encode compresses Inner's encoding of v into w.
func (c SnappyCodec[T]) Encode(w io.Writer, v T) error {
	sw := snappy.NewBufferedWriter(w)

	err := c.Inner.Encode(sw, v)
	if err != nil {
		return errors.Join(err, sw.Close())
	}

	err = sw.Close()
	if err != nil {
		return fmt.Errorf("snappy flush: %w", err)
	}

	return nil
}

// Decode decompresses r and hands it to Inner.
func (c SnappyCodec[T]) Decode(r io.Reader, v T) error {
	return c.Inner.Decode(snappy.NewReader(r), v)
}

// CodecByName returns "json", "yaml", "json+snappy" or "yaml+snappy" codecs.
func CodecByName[T Object](name string) (Codec[T], error) {
	switch name {
	case "", "json":
		return JSONCodec[T]{}, nil
	case "yaml":
		return YAMLCodec[T]{}, nil
	case "json+snappy":
		return SnappyCodec[T]{Inner: JSONCodec[T]{}}, nil
	case "yaml+snappy":
		return SnappyCodec[T]{Inner: YAMLCodec[T]{}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidConfig, name)
	}
}
