package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-05-01", "2024/05/01", "5/1/2024", "05/01/2024 09:15:00", "May 1, 2024", "1 May 2024", "2024-05-01T08:00:00Z", "45413"} {
		got, ok := ParseDate(s)
		require.True(t, ok, s)
		assert.Equal(t, "2024-05-01", got.Format(DateLayout), s)
	}
	for _, s := range []string{"", "not a date", "12", "15551234567"} {
		_, ok := ParseDate(s)
		assert.False(t, ok, s)
	}
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2023-09-15", NormalizeDate("9/15/2023"))
	assert.Equal(t, "last tuesday", NormalizeDate("last tuesday"))
}
