package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItem(t *testing.T) {
	name, qty, err := parseItem("Opsite (Piece)=2")
	require.NoError(t, err)
	assert.Equal(t, "Opsite (Piece)", name)
	assert.Equal(t, 2, qty)

	name, qty, err = parseItem(" Saline 0.9% = 500ml=3 ")
	require.NoError(t, err)
	assert.Equal(t, "Saline 0.9% = 500ml", name)
	assert.Equal(t, 3, qty)

	for _, bad := range []string{"Opsite", "=2", "Opsite=0", "Opsite=-1", "Opsite=two"} {
		_, _, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}
