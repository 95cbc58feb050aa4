package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Field
		wantErr bool
	}{
		{"phone", FieldPhone, false},
		{" Rating ", FieldRating, false},
		{"PHONE", FieldPhone, false},
		{"email", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseField(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown field")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldColumn(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "phone", FieldPhone.Column())
	assert.Equal(t, "rating_average", FieldRating.Column())
}

func TestListingHasRating(t *testing.T) {
	t.Parallel()

	rating := 4.5
	reviews := 12
	none := 0

	assert.True(t, Listing{Rating: &rating, ReviewCount: &reviews}.HasRating())
	assert.False(t, Listing{Rating: &rating}.HasRating())
	assert.False(t, Listing{ReviewCount: &reviews}.HasRating())
	assert.False(t, Listing{Rating: &rating, ReviewCount: &none}.HasRating())
}
