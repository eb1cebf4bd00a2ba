package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("PF_TEST_VALUE", "  ")
	assert.Equal(t, "json", Get("PF_TEST_VALUE", "json"), "blank counts as unset")

	t.Setenv("PF_TEST_VALUE", " console ")
	assert.Equal(t, "console", Get("PF_TEST_VALUE", "json"))
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"true": true, "0": false, "nope": true, "": true}
	for raw, want := range cases {
		t.Setenv("PF_TEST_FLAG", raw)
		assert.Equal(t, want, Bool("PF_TEST_FLAG", true), "value %q", raw)
	}
}
