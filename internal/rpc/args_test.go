package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestArgs(t *testing.T) {
	args := Args{7, "a, b,,c", map[string]any{"k": "v"}, []any{"x", 3}}

	s, err := args.String(0)
	require.NoError(t, err)
	assert.Equal(t, "7", s)

	l, err := args.List(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, l)

	f, err := args.Struct(2)
	require.NoError(t, err)
	assert.True(t, f.Has("k"))

	l, err = args.List(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "3"}, l)

	_, err = args.String(9)
	assert.ErrorIs(t, err, ErrArgs)
	_, err = args.Struct(0)
	assert.ErrorIs(t, err, ErrArgs)

	def, err := args.OptInt(9, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, def)
}

func TestFields(t *testing.T) {
	f := Fields{"name": "x", "count": "12", "on": 1, "off": "false", "ids": []any{1, "2"}, "bad": 1.5}

	v, err := f.Required("name")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	_, err = f.Required("missing")
	assert.ErrorIs(t, err, ErrArgs)

	n, err := f.Int("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	on, err := f.Bool("on", false)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := f.Bool("off", true)
	require.NoError(t, err)
	assert.False(t, off)

	ids, err := f.List("ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	_, err = f.Int("bad", 0)
	assert.ErrorIs(t, err, ErrArgs)
}

func TestFields_Filter(t *testing.T) {
	filter, err := Fields{"status": []any{"PASSED", "FAILED"}, "run_id": "r", "is_active": true}.Filter()
	require.NoError(t, err)
	assert.Equal(t, types.Filter{"status": []string{"PASSED", "FAILED"}, "run_id": "r", "is_active": true}, filter)

	_, err = Fields{"x": map[string]any{}}.Filter()
	assert.ErrorIs(t, err, ErrArgs)
}
