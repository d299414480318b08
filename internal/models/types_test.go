package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("info")
	require.NoError(t, err)
	assert.Equal(t, SeverityInfo, s)

	_, err = ParseSeverity("debug")
	assert.Error(t, err)
}

func TestSeverity_Scan(t *testing.T) {
	var s Severity
	require.NoError(t, s.Scan([]byte("Error")))
	assert.Equal(t, SeverityError, s)

	assert.Error(t, s.Scan(42))
	assert.Error(t, s.Scan("fatal"))
	assert.Equal(t, SeverityError, s)

	v, err := SeverityInfo.Value()
	require.NoError(t, err)
	assert.Equal(t, "INFO", v)
}
