package coerce

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func proposalSchema() Schema {
	return Schema{
		Name: "proposal",
		Fields: []FieldSpec{
			{Name: "title", Type: TypeString, Default: "Untitled proposal"},
			{Name: "scope", Type: TypeString, Default: "Scope not defined."},
			{Name: "technologies", Type: TypeList, Default: "To be defined"},
			{Name: "estimated_value", Type: TypeCurrency},
			{Name: "weeks", Type: TypeNumber, Default: 1.0},
			{Name: "fixed_price", Type: TypeBool},
			{Name: "notes", Type: TypeString, Optional: true},
		},
	}
}

func TestCoerce_ValidObject(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	raw := `{"title":"Shop","scope":"Catalog and checkout","technologies":["Go","Postgres"],` +
		`"estimated_value":12000.5,"weeks":8,"fixed_price":true,"notes":"n/a"}`
	rec := c.Coerce(raw, proposalSchema())

	assert.False(t, rec.Degraded)
	assert.Empty(t, rec.Reason)
	assert.Equal(t, map[string]any{
		"title":           "Shop",
		"scope":           "Catalog and checkout",
		"technologies":    "Go, Postgres",
		"estimated_value": 12000.5,
		"weeks":           8.0,
		"fixed_price":     true,
		"notes":           "n/a",
	}, rec.Values)
}

func TestCoerce_OptionalFieldMayBeAbsent(t *testing.T) {
	c := New(nil)

	raw := `{"title":"Shop","scope":"s","technologies":"Go","estimated_value":"R$ 100,00","weeks":2,"fixed_price":false}`
	rec := c.Coerce(raw, proposalSchema())

	assert.False(t, rec.Degraded)
	assert.Equal(t, "", rec.String("notes"))
	assert.InDelta(t, 100.0, rec.Float("estimated_value"), 1e-9)
}

func TestCoerce_ObjectWrappedInProse(t *testing.T) {
	c := New(nil)

	raw := "Sure! Here is the JSON you asked for:\n```json\n" +
		`{"title":"Shop","scope":"s","technologies":[],"estimated_value":1,"weeks":1,"fixed_price":false}` +
		"\n```\nLet me know if you need anything else."
	rec := c.Coerce(raw, proposalSchema())

	assert.False(t, rec.Degraded)
	assert.Equal(t, "Shop", rec.String("title"))
}

func TestCoerce_NoObjectYieldsDefaults(t *testing.T) {
	c := New(nil)
	schema := proposalSchema()

	for _, raw := range []string{"", "I cannot help with that.", "} backwards {"} {
		rec := c.Coerce(raw, schema)
		assert.True(t, rec.Degraded, "raw=%q", raw)
		assert.Equal(t, ReasonNoObject, rec.Reason)
		assert.Equal(t, schema.Defaults(), rec.Values)
	}
}

func TestCoerce_PartialObjectPreservesValidFields(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	raw := `{"title":"Shop","scope":42,"weeks":"soon"}`
	rec := c.Coerce(raw, proposalSchema())

	require.True(t, rec.Degraded)
	assert.Contains(t, rec.Reason, `field "technologies" is missing`)
	assert.Contains(t, rec.Reason, `field "scope": expected string, got number`)

	assert.Equal(t, "Shop", rec.String("title"))
	// Numbers are rendered for text fields in the fallback pass.
	assert.Equal(t, "42", rec.String("scope"))
	assert.Equal(t, "To be defined", rec.String("technologies"))
	assert.Equal(t, 1.0, rec.Float("weeks"))
	assert.Equal(t, 0.0, rec.Float("estimated_value"))
	assert.False(t, rec.Bool("fixed_price"))
}

func TestCoerce_MalformedJSONReadsFieldsLeniently(t *testing.T) {
	c := New(nil)

	raw := `{"title": "Shop", "technologies": ["Go", "Redis"], "estimated_value": "R$ 2.500,00", "weeks": 3,}`
	rec := c.Coerce(raw, proposalSchema())

	require.True(t, rec.Degraded)
	assert.Contains(t, rec.Reason, "malformed JSON")
	assert.Equal(t, "Shop", rec.String("title"))
	assert.Equal(t, "Go, Redis", rec.String("technologies"))
	assert.InDelta(t, 2500.0, rec.Float("estimated_value"), 1e-9)
	assert.Equal(t, 3.0, rec.Float("weeks"))
	assert.Equal(t, "Scope not defined.", rec.String("scope"))
}

func TestCoerce_TrailingObjectIsDegraded(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	schema := Schema{Name: "title", Fields: []FieldSpec{{Name: "title", Type: TypeString, Default: "Untitled"}}}

	rec := c.Coerce(`Example: {"title":"EXAMPLE"} Actual answer: {"title":"Real"}`, schema)

	require.True(t, rec.Degraded)
	assert.Contains(t, rec.Reason, "malformed JSON")
}

func TestCoerce_PresentValuesIndependentOfOtherFields(t *testing.T) {
	c := New(nil)
	schema := Schema{
		Name: "estimate",
		Fields: []FieldSpec{
			{Name: "scope", Type: TypeString, Default: "DEFAULT SCOPE"},
			{Name: "risks", Type: TypeList, Default: "DEFAULT RISKS"},
			{Name: "weeks", Type: TypeNumber, Default: 1.0},
		},
	}

	full := c.Coerce(`{"scope":"","risks":[],"weeks":3}`, schema)
	partial := c.Coerce(`{"scope":"","risks":[]}`, schema)
	malformed := c.Coerce(`{"scope":"","risks":[],}`, schema)

	require.False(t, full.Degraded)
	require.True(t, partial.Degraded)
	require.True(t, malformed.Degraded)
	for _, rec := range []Record{full, partial, malformed} {
		assert.Equal(t, "", rec.String("scope"))
		assert.Equal(t, "", rec.String("risks"))
	}
	assert.Equal(t, 1.0, partial.Float("weeks"))
}

func TestCoerce_EveryFieldAlwaysPresent(t *testing.T) {
	c := New(nil)
	schema := proposalSchema()

	inputs := []string{
		`{}`,
		`{"title": null}`,
		`{"unexpected": true}`,
		`{"title": "x"`,
		`{"title": {"nested": 1}}`,
	}
	for _, raw := range inputs {
		rec := c.Coerce(raw, schema)
		for _, f := range schema.Fields {
			_, ok := rec.Values[f.Name]
			assert.True(t, ok, "field %s missing for %q", f.Name, raw)
		}
	}
}

func TestCoerce_ListRepresentationsConverge(t *testing.T) {
	c := New(nil)
	schema := Schema{Fields: []FieldSpec{{Name: "items", Type: TypeList}}}

	fromArray := c.Coerce(`{"items":["a","b","c"]}`, schema)
	fromString := c.Coerce(`{"items":"a; b\n- c"}`, schema)

	assert.False(t, fromArray.Degraded)
	assert.False(t, fromString.Degraded)
	assert.Equal(t, fromArray.Values, fromString.Values)
	assert.Equal(t, []string{"a", "b", "c"}, fromArray.List("items"))
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"brazilian format", "R$ 1.234,56", 1234.56, true},
		{"brazilian thousands only", "R$ 50.000", 50000, true},
		{"decimal comma", "12,5", 12.5, true},
		{"us format", "$1,234.56", 1234.56, true},
		{"plain decimal string", "1234.56", 1234.56, true},
		{"repeated thousands", "1.234.567", 1234567, true},
		{"trailing words", "R$ 10.000,00 (estimated)", 10000, true},
		{"negative", "-15,75", -15.75, true},
		{"float passthrough", 99.9, 99.9, true},
		{"int passthrough", 7, 7, true},
		{"json number", json.Number("42.5"), 42.5, true},
		{"garbage", "garbage", 0, false},
		{"empty", "", 0, false},
		{"unsupported type", []string{"1"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCurrency(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeCurrency_Idempotent(t *testing.T) {
	for _, in := range []string{"R$ 1.234,56", "$10", "3,5", "garbage"} {
		once, _ := NormalizeCurrency(in)
		twice, ok := NormalizeCurrency(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestSchema_Describe(t *testing.T) {
	doc := proposalSchema().Describe()

	var parsed struct {
		Title      string                    `json:"title"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))

	assert.Equal(t, "proposal", parsed.Title)
	assert.Equal(t, "array", parsed.Properties["technologies"]["type"])
	assert.Equal(t, "number", parsed.Properties["estimated_value"]["type"])
	assert.NotContains(t, parsed.Required, "notes")
	assert.Contains(t, parsed.Required, "title")
}

func TestRecord_Clone(t *testing.T) {
	rec := Record{Values: map[string]any{"a": "1"}}
	clone := rec.Clone()
	clone.Values["a"] = "2"
	assert.Equal(t, "1", rec.String("a"))
}
