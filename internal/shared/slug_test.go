package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Blue T-Shirt":        "blue-t-shirt",
		"Café  Été":           "caf-t",
		"  Mixed__CASE 42 ":   "mixed-case-42",
		"already-slugged":     "already-slugged",
		"trailing dash-":      "trailing-dash",
		"---":                 "",
		"100% Cotton / Wool!": "100-cotton-wool",
	}
	for in, want := range cases {
		require.Equal(t, want, Slug(in), "input %q", in)
	}
}

func TestSlugPathKeepsSeparators(t *testing.T) {
	require.Equal(t, "men/shoes/running-42", SlugPath("Men/Shoes/Running 42"))
	require.Equal(t, "a/b", SlugPath("A!/B?"))
}
