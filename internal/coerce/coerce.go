package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ReasonNoObject is the degradation reason when no JSON object is found.
const ReasonNoObject = "no JSON object in response"

// Coercer validates model responses against schemas.
type Coercer struct {
	log *zap.Logger
}

// New creates a Coercer. A nil logger discards output.
func New(log *zap.Logger) *Coercer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coercer{log: log}
}

// Coerce extracts the outermost JSON object from raw and coerces it into
// schema. It never returns an error: anything short of a fully valid object
// yields a degraded record with defaults filled in.
func (c *Coercer) Coerce(raw string, schema Schema) Record {
	payload, ok := ExtractObject(raw)
	if !ok {
		return Record{Values: schema.Defaults(), Degraded: true, Reason: ReasonNoObject}
	}

	obj, err := decodeObject(payload)
	if err != nil {
		reason := fmt.Sprintf("malformed JSON: %v", err)
		c.log.Debug("strict decode failed, reading fields leniently",
			zap.String("schema", schema.Name), zap.Error(err))
		return Record{Values: c.fromGJSON(payload, schema), Degraded: true, Reason: reason}
	}

	values, issues := strictValues(obj, schema)
	if len(issues) == 0 {
		return Record{Values: values}
	}

	c.log.Debug("response failed validation, using fallback values",
		zap.String("schema", schema.Name), zap.Strings("issues", issues))
	return Record{
		Values:   c.fromMap(obj, schema),
		Degraded: true,
		Reason:   strings.Join(issues, "; "),
	}
}

// ExtractObject returns the substring from the first '{' to the last '}'.
func ExtractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func decodeObject(payload string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("top-level value is not an object")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return obj, nil
}

// strictValues validates every field and reports each mismatch.
func strictValues(obj map[string]any, schema Schema) (map[string]any, []string) {
	values := make(map[string]any, len(schema.Fields))
	var issues []string
	for _, f := range schema.Fields {
		raw, present := obj[f.Name]
		if !present || raw == nil {
			if f.Optional {
				values[f.Name] = f.DefaultValue()
				continue
			}
			issues = append(issues, fmt.Sprintf("field %q is missing", f.Name))
			continue
		}
		v, err := strictValue(f, raw)
		if err != nil {
			issues = append(issues, fmt.Sprintf("field %q: %v", f.Name, err))
			continue
		}
		values[f.Name] = v
	}
	return values, issues
}

func strictValue(f FieldSpec, raw any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", jsonKind(raw))
		}
		return s, nil
	case TypeNumber:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %s", jsonKind(raw))
		}
		return n.Float64()
	case TypeCurrency:
		switch raw.(type) {
		case json.Number, string:
		default:
			return nil, fmt.Errorf("expected currency, got %s", jsonKind(raw))
		}
		v, ok := NormalizeCurrency(raw)
		if !ok {
			return nil, fmt.Errorf("unparsable currency %v", raw)
		}
		return v, nil
	case TypeList:
		s, ok := normalizeList(raw)
		if !ok {
			return nil, fmt.Errorf("expected list, got %s", jsonKind(raw))
		}
		return s, nil
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %s", jsonKind(raw))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported field type %s", f.Type)
	}
}

// fromMap fills every field from an already decoded object, taking
// compatible values and defaulting the rest.
func (c *Coercer) fromMap(obj map[string]any, schema Schema) map[string]any {
	values := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		values[f.Name] = c.lenientValue(f, obj[f.Name])
	}
	return values
}

// fromGJSON reads fields one by one from a payload that failed to decode.
func (c *Coercer) fromGJSON(payload string, schema Schema) map[string]any {
	values := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		res := gjson.Get(payload, escapePath(f.Name))
		values[f.Name] = c.lenientValue(f, gjsonValue(res))
	}
	return values
}

// lenientValue returns raw converted to the field's canonical type, or the
// field default when raw is absent or incompatible.
func (c *Coercer) lenientValue(f FieldSpec, raw any) any {
	if raw == nil {
		return f.DefaultValue()
	}

	switch f.Type {
	case TypeString:
		switch x := raw.(type) {
		case string:
			return x
		case json.Number:
			return x.String()
		case bool:
			return strconv.FormatBool(x)
		case map[string]any, []any:
			b, err := json.Marshal(x)
			if err != nil {
				return f.DefaultValue()
			}
			return string(b)
		}
	case TypeNumber:
		switch x := raw.(type) {
		case json.Number:
			if v, err := x.Float64(); err == nil {
				return v
			}
		case string:
			if v, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return v
			}
		}
	case TypeCurrency:
		v, ok := NormalizeCurrency(raw)
		if !ok {
			c.log.Warn("unparsable currency value, storing 0",
				zap.String("field", f.Name), zap.Any("value", raw))
			return 0.0
		}
		return v
	case TypeList:
		if s, ok := normalizeList(raw); ok {
			return s
		}
	case TypeBool:
		switch x := raw.(type) {
		case bool:
			return x
		case string:
			if v, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return v
			}
		}
	}
	return f.DefaultValue()
}

// gjsonValue converts a lenient lookup result into the same shapes
// encoding/json produces with UseNumber.
func gjsonValue(res gjson.Result) any {
	if !res.Exists() {
		return nil
	}
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.Number:
		return json.Number(res.Raw)
	case gjson.True, gjson.False:
		return res.Bool()
	case gjson.JSON:
		if res.IsArray() {
			arr := res.Array()
			out := make([]any, 0, len(arr))
			for _, el := range arr {
				out = append(out, gjsonValue(el))
			}
			return out
		}
		return res.Value()
	default:
		return nil
	}
}

// escapePath escapes gjson path syntax in a plain key.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
