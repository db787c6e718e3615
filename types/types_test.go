package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Cell handles compare by value, sentinel is never found
		var a, b CellHandle
		a, b = 12, 12
		assert.Equal(t, a, b)
		assert.True(t, a.Found())
		assert.False(t, CellNotFound.Found())
		assert.Equal(t, CellHandle(-1), CellNotFound)
	}
	{ // Norm labels parse case insensitively, unknown labels error
		tokens := []string{"Linf", "INF", "l1", "L2"}
		norms := []NormType{NormLinf, NormLinf, NormL1, NormL2}
		for i, token := range tokens {
			nt, err := NewNormType(token)
			assert.NoError(t, err)
			assert.Equal(t, norms[i], nt)
		}
		_, err := NewNormType("L3")
		assert.Error(t, err)
	}
	{ // IC source and output mode round trip through their labels
		ic, err := NewICSource("Neutronics")
		assert.NoError(t, err)
		assert.Equal(t, ICNeutronics, ic)
		assert.Equal(t, "neutronics", ic.String())

		om, err := NewOutputMode("FINAL")
		assert.NoError(t, err)
		assert.Equal(t, OutputFinal, om)
		assert.Equal(t, "final", om.String())

		_, err = NewOutputMode("sometimes")
		assert.Error(t, err)
	}
}
