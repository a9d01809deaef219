package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tags stripped", "<p>Hi there.</p>", "Hi there."},
		{"nested markup", "<div><b>Hello</b> <i>World</i></div>", "Hello World"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"plain text untouched", "just text", "just text"},
		{"script dropped", "<script>alert(1)</script><p>safe</p>", "safe"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanHTML(tc.in))
		})
	}
}
