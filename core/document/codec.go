package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Decode parses a JSON document, keeping numbers as exact literals.
func Decode(data []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json document: %w", err)
	}
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("decode json document: unexpected trailing data")
	}
	return FromAny(raw)
}

func DecodeYAML(data []byte) (Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml document: %w", err)
	}
	return FromAny(raw)
}

// FromAny converts the generic shapes produced by encoding/json and YAML
// decoders into a tagged tree.
func FromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return Clone(typed), nil
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	case json.Number:
		if _, err := strconv.ParseFloat(typed.String(), 64); err != nil {
			return nil, fmt.Errorf("invalid number literal %q", typed.String())
		}
		return Number(typed.String()), nil
	case float64:
		return floatNumber(typed)
	case float32:
		return floatNumber(float64(typed))
	case int:
		return Number(strconv.FormatInt(int64(typed), 10)), nil
	case int8:
		return Number(strconv.FormatInt(int64(typed), 10)), nil
	case int16:
		return Number(strconv.FormatInt(int64(typed), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(typed), 10)), nil
	case int64:
		return Number(strconv.FormatInt(typed, 10)), nil
	case uint:
		return Number(strconv.FormatUint(uint64(typed), 10)), nil
	case uint8:
		return Number(strconv.FormatUint(uint64(typed), 10)), nil
	case uint16:
		return Number(strconv.FormatUint(uint64(typed), 10)), nil
	case uint32:
		return Number(strconv.FormatUint(uint64(typed), 10)), nil
	case uint64:
		return Number(strconv.FormatUint(typed, 10)), nil
	case []any:
		sequence := &Sequence{items: make([]Value, 0, len(typed))}
		for index, item := range typed {
			converted, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", index, err)
			}
			sequence.items = append(sequence.items, converted)
		}
		return sequence, nil
	case map[string]any:
		mapping := &Mapping{entries: make(map[string]Value, len(typed))}
		for key, entry := range typed {
			converted, err := FromAny(entry)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			mapping.entries[key] = converted
		}
		return mapping, nil
	case map[any]any:
		mapping := &Mapping{entries: make(map[string]Value, len(typed))}
		for key, entry := range typed {
			textKey := fmt.Sprint(key)
			converted, err := FromAny(entry)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", textKey, err)
			}
			mapping.entries[textKey] = converted
		}
		return mapping, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}

func floatNumber(value float64) (Value, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("non-finite number %v", value)
	}
	return Number(strconv.FormatFloat(value, 'g', -1, 64)), nil
}

// ToAny converts a tagged tree back into encoding/json shapes.
func ToAny(value Value) any {
	switch typed := value.(type) {
	case *Mapping:
		if typed == nil {
			return nil
		}
		output := make(map[string]any, len(typed.entries))
		for key, entry := range typed.entries {
			output[key] = ToAny(entry)
		}
		return output
	case *Sequence:
		if typed == nil {
			return nil
		}
		output := make([]any, 0, len(typed.items))
		for _, item := range typed.items {
			output = append(output, ToAny(item))
		}
		return output
	case String:
		return string(typed)
	case Number:
		return json.Number(typed)
	case Bool:
		return bool(typed)
	default:
		return nil
	}
}

// Marshal encodes value as compact JSON with mapping keys sorted.
func Marshal(value Value) ([]byte, error) {
	buffer := &bytes.Buffer{}
	if err := encode(buffer, value); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (mapping *Mapping) MarshalJSON() ([]byte, error) {
	return Marshal(mapping)
}

func (sequence *Sequence) MarshalJSON() ([]byte, error) {
	return Marshal(sequence)
}

func encode(buffer *bytes.Buffer, value Value) error {
	switch typed := value.(type) {
	case nil, Null:
		buffer.WriteString("null")
	case Bool:
		if typed {
			buffer.WriteString("true")
		} else {
			buffer.WriteString("false")
		}
	case Number:
		if !json.Valid([]byte(typed)) {
			return fmt.Errorf("invalid number literal %q", string(typed))
		}
		buffer.WriteString(string(typed))
	case String:
		return encodeString(buffer, string(typed))
	case *Sequence:
		if typed == nil {
			buffer.WriteString("null")
			return nil
		}
		buffer.WriteByte('[')
		for index, item := range typed.items {
			if index > 0 {
				buffer.WriteByte(',')
			}
			if err := encode(buffer, item); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
	case *Mapping:
		if typed == nil {
			buffer.WriteString("null")
			return nil
		}
		keys := make([]string, 0, len(typed.entries))
		for key := range typed.entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buffer.WriteByte('{')
		for index, key := range keys {
			if index > 0 {
				buffer.WriteByte(',')
			}
			if err := encodeString(buffer, key); err != nil {
				return err
			}
			buffer.WriteByte(':')
			if err := encode(buffer, typed.entries[key]); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		buffer.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

// encodeString writes text as a JSON string without HTML escaping.
func encodeString(buffer *bytes.Buffer, text string) error {
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(text); err != nil {
		return err
	}
	buffer.Truncate(buffer.Len() - 1)
	return nil
}
