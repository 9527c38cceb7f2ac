package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		want      Jurisdiction
		wantIndex string
	}{
		{in: "Maharashtra", want: Maharashtra, wantIndex: "maha_ada"},
		{in: "gujarat", want: Gujarat, wantIndex: "guj_ada"},
		{in: "Uttrakhand", want: Uttarakhand, wantIndex: "uk_ada"},
		{in: "Uttarakhand", want: Uttarakhand, wantIndex: "uk_ada"},
		{in: " CENTRAL ", want: Central, wantIndex: "cen_ada"},
		{in: "Jharkhand", want: Jharkhand, wantIndex: "jha_ada"},
		{in: "Karnataka", want: Karnataka, wantIndex: "ka_ada"},
		{in: "Uttar  Pradesh", want: UttarPradesh, wantIndex: "up_ada"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantIndex, got.IndexName())
		})
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("Delhi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestTableIsComplete(t *testing.T) {
	seen := map[string]bool{}
	for _, j := range All() {
		assert.True(t, j.Valid())
		assert.NotEmpty(t, j.IndexName())
		assert.False(t, seen[j.IndexName()], "index %s mapped twice", j.IndexName())
		seen[j.IndexName()] = true

		back, err := Parse(j.String())
		require.NoError(t, err)
		assert.Equal(t, j, back)
	}
	assert.Len(t, seen, 7)
	assert.False(t, Jurisdiction(0).Valid())
}

func TestTextRoundTrip(t *testing.T) {
	b, err := UttarPradesh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Uttar Pradesh", string(b))

	var j Jurisdiction
	require.NoError(t, j.UnmarshalText([]byte("uttrakhand")))
	assert.Equal(t, Uttarakhand, j)
	assert.ErrorIs(t, j.UnmarshalText([]byte("Goa")), ErrUnknown)
}
