package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "international with spaces", input: "+33 6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "double zero prefix", input: "0033612345678", want: "0612345678", wantOK: true},
		{name: "double zero prefix with spaces", input: "00 33 6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "international with trunk zero", input: "+33 (0)6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "dotted national", input: "06.12.34.56.78", want: "0612345678", wantOK: true},
		{name: "dashed landline", input: "01-42-68-53-00", want: "0142685300", wantOK: true},
		{name: "already canonical", input: "0512345678", want: "0512345678", wantOK: true},
		{name: "surrounding text", input: "Tél : 04 78 12 34 56", want: "0478123456", wantOK: true},
		{name: "labelled international", input: "Tél : +33 6 12 34 56 78", want: "0612345678", wantOK: true},
		{name: "premium prefix", input: "0891234567"},
		{name: "premium prefix international", input: "+33 8 91 23 45 67"},
		{name: "too short", input: "12345"},
		{name: "too long", input: "061234567890"},
		{name: "zero area digit", input: "0012345678"},
		{name: "foreign number", input: "+44 20 7946 0958"},
		{name: "inner plus dropped", input: "06+12345678", want: "0612345678", wantOK: true},
		{name: "empty", input: ""},
		{name: "whitespace", input: "   "},
		{name: "letters only", input: "not a phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizePhone(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_ResultAlwaysValid(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"+33612345678", "0033 1 23 45 67 89", "07 00 00 00 00", "+33 (0)9 87 65 43 21",
		"0899999999", "+3361234", "33612345678",
	}
	for _, in := range inputs {
		got, ok := NormalizePhone(in)
		if !ok {
			continue
		}
		assert.Regexp(t, `^0[1-9][0-9]{8}$`, got, in)
		assert.NotEqual(t, "089", got[:3], in)
	}
}
