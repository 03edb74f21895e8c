package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, call Call) (*Outcome, error) {
	return &Outcome{Message: "ok"}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	skill := NewBaseSkill("care")
	skill.AddBinding(Binding{Capability: "log_hydration", Handler: noop})
	skill.AddBinding(Binding{Capability: "log_checkin", Handler: noop})

	r := NewRegistry()
	require.NoError(t, r.Register(skill))

	b, ok := r.Get("log_hydration")
	require.True(t, ok)
	out, err := b.Handler(context.Background(), Call{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Message)

	assert.Equal(t, []string{"log_checkin", "log_hydration"}, r.Capabilities())
	assert.Error(t, r.Register(skill), "registering the same skill twice should fail")
}

func TestRegistry_RejectsBadBindings(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Bind(Binding{Handler: noop}))
	assert.Error(t, r.Bind(Binding{Capability: "x"}))
	require.NoError(t, r.Bind(Binding{Capability: "x", Handler: noop}))
	assert.Error(t, r.Bind(Binding{Capability: "x", Handler: noop}))
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Bind(Binding{Capability: "a", Handler: noop}))
	require.NoError(t, r.Bind(Binding{Capability: "b", Handler: noop}))

	assert.NoError(t, r.Validate([]string{"a", "b"}))

	err := r.Validate([]string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[c]")

	err = r.Validate([]string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[b]")
}

func TestArgs(t *testing.T) {
	params := map[string]interface{}{
		"name":   "  aspirin ",
		"float":  120.0,
		"int":    80,
		"flag":   true,
		"list":   []interface{}{"a", 2},
		"string": []string{"x"},
	}

	assert.Equal(t, "aspirin", StringArg(params, "name"))
	assert.Equal(t, "", StringArg(params, "missing"))

	v, ok := NumberArg(params, "float")
	assert.True(t, ok)
	assert.Equal(t, 120.0, v)
	v, ok = NumberArg(params, "int")
	assert.True(t, ok)
	assert.Equal(t, 80.0, v)
	_, ok = NumberArg(params, "name")
	assert.False(t, ok)

	assert.True(t, BoolArg(params, "flag"))
	assert.Equal(t, []string{"a", "2"}, StringSliceArg(params, "list"))
	assert.Equal(t, []string{"x"}, StringSliceArg(params, "string"))
}

func TestIntSliceArg(t *testing.T) {
	params := map[string]interface{}{
		"direct": []int{1, 5},
		"json":   []interface{}{1.0, 3.0, "x"},
	}
	assert.Equal(t, []int{1, 5}, IntSliceArg(params, "direct"))
	assert.Equal(t, []int{1, 3}, IntSliceArg(params, "json"))
	assert.Nil(t, IntSliceArg(params, "missing"))
}
