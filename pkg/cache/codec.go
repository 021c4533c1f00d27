package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/strand-analytics/graphopt/pkg/encryption"
)

// Codec serializes cached values for storage: JSON, gzip-compressed, and
// optionally sealed with AES-256-GCM when an Encryptor is configured.
//
// Decoding preserves integer values exactly (json.Number, not float64), so
// a normalized result survives the round trip without precision loss.
//
// Caveat: JSON carries no int/float distinction, so an integral float64
// (2.0) encodes as 2 and decodes as int64(2). Callers comparing hit and
// miss results for the same query should treat integral numerics as
// interchangeable or carry floats with a fractional part.
type Codec struct {
	encryptor *encryption.Encryptor
}

// NewCodec creates a codec. encryptor may be nil (no encryption).
func NewCodec(encryptor *encryption.Encryptor) *Codec {
	return &Codec{encryptor: encryptor}
}

// Encode serializes value to the stored representation.
func (c *Codec) Encode(value interface{}) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: encode failed: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("cache: compress failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("cache: compress failed: %w", err)
	}

	out := buf.Bytes()
	if c.encryptor != nil {
		out, err = c.encryptor.Encrypt(out)
		if err != nil {
			return nil, fmt.Errorf("cache: encrypt failed: %w", err)
		}
	}
	return out, nil
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte) (interface{}, error) {
	var err error
	if c.encryptor != nil {
		data, err = c.encryptor.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("cache: decrypt failed: %w", err)
		}
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cache: decompress failed: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("cache: decompress failed: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("cache: decompress failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("cache: decode failed: %w", err)
	}
	return restoreNumbers(value), nil
}

// restoreNumbers converts json.Number back to int64 (integers) or float64
// (everything else) so decoded values match what was encoded.
func restoreNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := val.Int64(); err == nil {
				return n
			}
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return s
	case map[string]interface{}:
		for k, elem := range val {
			val[k] = restoreNumbers(elem)
		}
		return val
	case []interface{}:
		for i, elem := range val {
			val[i] = restoreNumbers(elem)
		}
		return val
	default:
		return v
	}
}
