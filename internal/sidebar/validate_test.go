package sidebar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ClapArgs(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(ClapArgs(), Options{Strict: true}))

	err := Validate(ClapArgs(), Options{RequireDescriptions: true})
	require.ErrorIs(t, err, ErrEmptyDescription)
	assert.Contains(t, err.Error(), `mod "any_arg"`)
	assert.Contains(t, err.Error(), `mod "settings"`)
}

func TestValidate_UnknownKind(t *testing.T) {
	t.Parallel()

	items, err := Parse([]byte(`{"gadget":[["thing","A thing."]]}`))
	require.NoError(t, err, "unknown kinds load by default")

	require.NoError(t, Validate(items, Options{}))
	require.ErrorIs(t, Validate(items, Options{Strict: true}), ErrUnknownKind)
}

func TestKind_Href(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "any_arg/index.html", KindMod.Href("any_arg"))
	assert.Equal(t, "struct.Arg.html", KindStruct.Href("Arg"))
	assert.Equal(t, "fn.run.html", KindFn.Href("run"))
}

func TestKind_Title(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Structs", KindStruct.Title())
	assert.Equal(t, "gadget", Kind("gadget").Title())
	assert.True(t, KindMacro.Known())
	assert.False(t, Kind("gadget").Known())
	assert.Len(t, KnownKinds(), len(kindTitles))
}

func TestBuiltinPaths(t *testing.T) {
	t.Parallel()

	assert.Contains(t, BuiltinPaths(), "clap::args")
	_, ok := Builtin("/clap/args/")
	assert.True(t, ok)
	_, ok = Builtin("clap::nope")
	assert.False(t, ok)
}
