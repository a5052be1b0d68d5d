package catalog

import (
	"fmt"

	"github.com/eleven-am/meandra/internal/xjson"
	"gopkg.in/yaml.v3"
)

// Codec encodes catalog values to bytes and back for one format name.
type Codec interface {
	Format() string
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

func builtinCodecs() map[string]Codec {
	codecs := map[string]Codec{}
	for _, c := range []Codec{jsonCodec{}, yamlCodec{}, textCodec{}, binaryCodec{}} {
		codecs[c.Format()] = c
	}
	return codecs
}

type jsonCodec struct{}

func (jsonCodec) Format() string { return "json" }

func (jsonCodec) Encode(value interface{}) ([]byte, error) {
	return xjson.MarshalIndent(value, "", "  ")
}

func (jsonCodec) Decode(data []byte) (interface{}, error) {
	var out interface{}
	if err := xjson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

type yamlCodec struct{}

func (yamlCodec) Format() string { return "yaml" }

func (yamlCodec) Encode(value interface{}) ([]byte, error) {
	return yaml.Marshal(value)
}

func (yamlCodec) Decode(data []byte) (interface{}, error) {
	var out interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return out, nil
}

type textCodec struct{}

func (textCodec) Format() string { return "text" }

func (textCodec) Encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, fmt.Errorf("text format requires a string value, got %T", value)
}

func (textCodec) Decode(data []byte) (interface{}, error) {
	return string(data), nil
}

type binaryCodec struct{}

func (binaryCodec) Format() string { return "binary" }

func (binaryCodec) Encode(value interface{}) ([]byte, error) {
	v, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("binary format requires a []byte value, got %T", value)
	}
	return v, nil
}

func (binaryCodec) Decode(data []byte) (interface{}, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
