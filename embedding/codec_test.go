package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	vec := []float32{0.1, -0.5, 1e-7, 0.999}
	got, err := Unmarshal(Marshal(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = Unmarshal(nil)
	assert.Error(t, err)
}
