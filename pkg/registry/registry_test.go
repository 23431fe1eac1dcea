package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flowroute/pkg/models"
	switchnode "github.com/dukex/flowroute/pkg/nodes/switch"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
	"github.com/dukex/flowroute/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(slog.Default())
	r.RegisterDefaultNodes()

	return r
}

func TestRegisterDefaultNodes(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"log", "transform"}, r.Namespaces())

	factories := r.GetAvailableFactories()
	require.Len(t, factories, 1)
	assert.Equal(t, switchnode.NodeType, factories[0].ID())
	assert.NotEmpty(t, factories[0].Schema())
}

func TestOperationSignature(t *testing.T) {
	r := newTestRegistry(t)

	sig, ok := r.OperationSignature(models.NewEntity("transform", "uppercase"))
	require.True(t, ok)
	assert.Equal(t, "uppercase", sig.Name)

	_, ok = r.OperationSignature(models.NewEntity("transform", "missing"))
	assert.False(t, ok)

	_, ok = r.OperationSignature(models.NewEntity("nope", "uppercase"))
	assert.False(t, ok)
}

func TestCreateOperationUnknownType(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.CreateOperation(context.Background(), "merge", "m1", nil)
	assert.ErrorIs(t, err, ErrFactoryNotFound)
}

func TestCallbackDispatch(t *testing.T) {
	r := newTestRegistry(t)
	callback := r.Callback()

	ref := models.ComponentReference{
		Origin: models.NewEntity("test", "caller"),
		Target: models.NewEntity("transform", "double"),
	}

	stream, err := callback(context.Background(), ref, "double",
		packet.NewStream(packet.Encode("input", 4), packet.Done("input")),
		models.NewInherentData(1), nil)
	require.NoError(t, err)

	out := testutil.Collect(t, stream)
	assert.Equal(t, []string{"output:8", "output:done"}, testutil.Strings(out))
}

func TestCallbackErrors(t *testing.T) {
	r := newTestRegistry(t)
	callback := r.Callback()

	_, err := callback(context.Background(), models.ComponentReference{
		Target: models.NewEntity("missing", "op"),
	}, "op", packet.NewStream(), models.InherentData{}, nil)
	assert.ErrorIs(t, err, ErrComponentNotFound)

	_, err = callback(context.Background(), models.ComponentReference{
		Target: models.NewEntity("transform", "square"),
	}, "square", packet.NewStream(), models.InherentData{}, nil)
	assert.ErrorIs(t, err, protocol.ErrOperationNotFound)
}

func TestSwitchThroughRegistry(t *testing.T) {
	r := newTestRegistry(t)

	op, err := r.CreateOperation(context.Background(), switchnode.NodeType, "router", map[string]any{
		"inputs":  []any{map[string]any{"name": "input"}},
		"outputs": []any{map[string]any{"name": "output"}},
		"cases": []any{
			map[string]any{"case": "up", "do": "transform::uppercase"},
			map[string]any{"case": "rev", "do": "transform::reverse"},
		},
		"default": "transform::echo",
	})
	require.NoError(t, err)

	node, ok := op.(*switchnode.SwitchNode)
	require.True(t, ok)

	sig, err := node.GenSignature(switchnode.Environment{Signatures: r})
	require.NoError(t, err)
	assert.Equal(t, []string{"output"}, sig.SortedOutputNames())

	inv := testutil.CreateTestInvocation("core::switch", []packet.Packet{
		packet.Encode(switchnode.Discriminant, "up"),
		packet.Encode("input", "abc"),
		packet.Done(switchnode.Discriminant),
		packet.Done("input"),
	})

	stream, err := op.Handle(context.Background(), inv, r.Callback())
	require.NoError(t, err)

	out := testutil.Collect(t, stream)
	assert.Equal(t, []string{`output:"ABC"`, "output:done"}, testutil.Strings(out))
}

func TestLoadComponentPluginsEmptyDir(t *testing.T) {
	r := newTestRegistry(t)

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(dir+"/components", 0o755))

	plugins, err := r.LoadComponentPlugins(dir)
	require.NoError(t, err)
	assert.Empty(t, plugins)
}
