package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/value"
)

func TestFromAbsoluteRejectsRelative(t *testing.T) {
	_, ok := value.FromAbsolute("foo/bar")
	assert.False(t, ok)
	p, ok := value.FromAbsolute("/foo/bar")
	require.True(t, ok)
	assert.Equal(t, value.Path("/foo/bar"), p)
}

func TestBasenameDirname(t *testing.T) {
	p := value.Path("/foo/bar/baz")
	assert.Equal(t, "baz", p.Basename())
	assert.Equal(t, value.Path("/foo/bar"), p.Dirname())
	assert.Equal(t, value.Path("/"), value.Path("/foo").Dirname())
	assert.Equal(t, value.Path("/"), value.Path("/").Dirname())
}

func TestAppend(t *testing.T) {
	p := value.Path("/foo")
	assert.Equal(t, value.Path("/foo/bar"), p.Append("bar"))
	assert.Equal(t, value.Path("/foo/bar"), p.Append("/bar"))
}

func TestParts(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, value.Path("/foo/bar").Parts())
	assert.Nil(t, value.Path("/").Parts())
}

func TestIsParent(t *testing.T) {
	assert.True(t, value.IsParent("/foo", "/foo/bar"))
	assert.True(t, value.IsParent("/foo", "/foo"))
	assert.False(t, value.IsParent("/foo", "/foobar"))
	assert.False(t, value.IsParent("/foo/bar", "/foo"))
}
