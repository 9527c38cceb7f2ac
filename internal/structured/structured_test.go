package structured

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "plain", raw: `{"intent": "GENERAL"}`, want: `{"intent": "GENERAL"}`, ok: true},
		{name: "fenced", raw: "```json\n{\"terms\": [\"a\"]}\n```", want: `{"terms": ["a"]}`, ok: true},
		{name: "prose around", raw: `Sure! {"states": ["Gujarat"]} hope this helps`, want: `{"states": ["Gujarat"]}`, ok: true},
		{name: "think tag", raw: "<think>{\"x\":1}</think>{\"intent\":\"TECHNICAL\"}", want: `{"intent":"TECHNICAL"}`, ok: true},
		{name: "no object", raw: "TECHNICAL", ok: false},
		{name: "truncated", raw: `{"terms": ["a", "b"`, ok: false},
		{name: "array only", raw: `["a", "b"]`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractObject(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParserFallsBackToDefault(t *testing.T) {
	p := Parser[string]{
		Name:    "test",
		Default: "fallback",
		Extract: func(r gjson.Result) (string, error) {
			v := r.Get("value")
			if !v.Exists() {
				return "", errors.New("missing value")
			}
			return v.String(), nil
		},
	}

	assert.Equal(t, "ok", p.Parse(`{"value": "ok"}`))
	assert.Equal(t, "fallback", p.Parse(`{"other": 1}`))
	assert.Equal(t, "fallback", p.Parse(`not json`))
	assert.Equal(t, "fallback", p.Parse(""))

	_, err := p.TryParse("not json")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestStrings(t *testing.T) {
	r := gjson.Parse(`{"terms": [" wages ", "", 3, "overtime"], "x": "y"}`)

	got, err := Strings(r, "terms")
	require.NoError(t, err)
	assert.Equal(t, []string{"wages", "overtime"}, got)

	_, err = Strings(r, "missing")
	assert.Error(t, err)
	_, err = Strings(r, "x")
	assert.Error(t, err)
}
