package dag

import (
	stdjson "encoding/json"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec shared by the dag and schema encoders. Numbers decode as
// json.Number so canonical re-encoding never goes through float64.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// JSON returns the codec used for element and record encoding.
func JSON() jsoniter.API {
	return json
}

// CanonicalJSON encodes v as compact JSON with object keys in byte order.
// Strings are written byte for byte, so decoding the output yields exactly
// the input. Equal values always produce equal bytes, which is what content
// keys are computed over.
func CanonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	writeCanonical(stream, tree)
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

// writeCanonical walks a tree produced by json.Unmarshal into interface{}.
func writeCanonical(stream *jsoniter.Stream, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		stream.WriteObjectStart()
		for i, k := range keys {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteStringWithHTMLEscaped(k)
			stream.WriteRaw(":")
			writeCanonical(stream, val[k])
		}
		stream.WriteObjectEnd()
	case []interface{}:
		stream.WriteArrayStart()
		for i, item := range val {
			if i > 0 {
				stream.WriteMore()
			}
			writeCanonical(stream, item)
		}
		stream.WriteArrayEnd()
	case string:
		stream.WriteStringWithHTMLEscaped(val)
	case stdjson.Number:
		stream.WriteRaw(val.String())
	case bool:
		stream.WriteBool(val)
	case nil:
		stream.WriteNil()
	default:
		stream.WriteVal(val)
	}
}
