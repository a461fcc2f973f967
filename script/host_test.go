package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/tessera/dom"
)

func TestStub(t *testing.T) {
	var s Stub
	require.NoError(t, s.Execute(nil))

	doc, _, err := dom.Parse([]byte(`<p>x</p><script>var a = 1;</script><script src="a.js"></script>`))
	require.NoError(t, err)
	scripts := doc.Scripts()
	require.Len(t, scripts, 2)

	err = s.Execute(scripts)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, scripts, s.Seen)
	assert.Equal(t, "a.js", s.Seen[1].Src)
}
