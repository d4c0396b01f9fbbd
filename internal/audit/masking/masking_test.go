package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskReference(t *testing.T) {
	assert.Equal(t, "", MaskReference("  "))
	assert.Equal(t, "****", MaskReference("abc"))
	assert.Equal(t, "****7890", MaskReference("MPESA-QWE1234567890"))
}

func TestMaskFieldsCopies(t *testing.T) {
	in := map[string]any{"reference": "BANK-00012345", "amount": "10.00"}
	out := MaskFields(in, "reference", "missing")

	assert.Equal(t, "****2345", out["reference"])
	assert.Equal(t, "10.00", out["amount"])
	assert.Equal(t, "BANK-00012345", in["reference"])
	assert.Nil(t, MaskFields(nil, "reference"))
}
