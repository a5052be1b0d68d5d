package node_registry

import (
	"context"
	"testing"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNode struct {
	kind   string
	params domain.ParamSet
}

func (s *stubNode) Kind() string { return s.kind }

func (s *stubNode) Validate(params map[string]interface{}) error {
	return s.params.Validate(params)
}

func (s *stubNode) Execute(ctx context.Context, call ports.NodeCall) (map[string]interface{}, error) {
	return nil, nil
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewAdapter(nil)

	require.NoError(t, reg.Register(&stubNode{kind: "exec"}))
	assert.True(t, reg.Has("exec"))

	node, err := reg.Get("exec")
	require.NoError(t, err)
	assert.Equal(t, "exec", node.Kind())
}

func TestRegisterRejections(t *testing.T) {
	reg := NewAdapter(nil)

	err := reg.Register(nil)
	require.Error(t, err)
	var regErr *ports.NodeRegistrationError
	require.ErrorAs(t, err, &regErr)

	err = reg.Register(&stubNode{kind: ""})
	require.Error(t, err)

	require.NoError(t, reg.Register(&stubNode{kind: "exec"}))
	err = reg.Register(&stubNode{kind: "exec"})
	require.Error(t, err)
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "exec", regErr.Kind)
	assert.Contains(t, regErr.Error(), "already registered")
}

func TestGetUnknownKind(t *testing.T) {
	reg := NewAdapter(nil)

	_, err := reg.Get("ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestKindsSorted(t *testing.T) {
	reg := NewAdapter(nil)
	for _, kind := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(&stubNode{kind: kind}))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Kinds())
}

func TestValidateSpec(t *testing.T) {
	reg := NewAdapter(nil)
	rate := 0.0
	require.NoError(t, reg.Register(&stubNode{
		kind:   "train",
		params: domain.ParamSet{"rate": {Type: domain.ParamFloat, Required: true, Min: &rate}},
	}))

	spec := &domain.WorkflowSpec{ID: "p", Nodes: []domain.NodeDescriptor{
		{ID: "fit", Kind: "train", Params: map[string]interface{}{"rate": 0.1}},
	}}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, reg.ValidateSpec(spec, domain.NewRunContext("r1")))
	})

	t.Run("unregistered kind", func(t *testing.T) {
		bad := &domain.WorkflowSpec{ID: "p", Nodes: []domain.NodeDescriptor{
			{ID: "x", Kind: "ghost"},
		}}
		err := reg.ValidateSpec(bad, domain.NewRunContext("r1"))
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
		assert.Contains(t, err.Error(), `"ghost"`)
	})

	t.Run("invalid params", func(t *testing.T) {
		bad := &domain.WorkflowSpec{ID: "p", Nodes: []domain.NodeDescriptor{
			{ID: "fit", Kind: "train", Params: map[string]interface{}{"rate": -1.0}},
		}}
		err := reg.ValidateSpec(bad, domain.NewRunContext("r1"))
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("override fails validation", func(t *testing.T) {
		rc := domain.NewRunContext("r1").WithParams(map[string]interface{}{"rate": -0.5})
		err := reg.ValidateSpec(spec, rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "below minimum")
	})
}
