package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
)

var (
	ErrComponentNotFound = errors.New("component not registered")
	ErrFactoryNotFound   = errors.New("operation type not registered")
	ErrInvalidPlugin     = errors.New("invalid plugin")
)

// Registry maps component namespaces to components and operation types to factories.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	components map[string]protocol.Component
	factories  map[string]protocol.OperationFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:     log,
		components: make(map[string]protocol.Component),
		factories:  make(map[string]protocol.OperationFactory),
	}
}

// RegisterComponent makes component reachable as "{namespace}::{operation}".
func (r *Registry) RegisterComponent(namespace string, component protocol.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.components[namespace] = component
}

// RegisterFactory registers an operation factory under its ID.
func (r *Registry) RegisterFactory(factory protocol.OperationFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
}

// Component returns the component registered under namespace.
func (r *Registry) Component(namespace string) (protocol.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[namespace]

	return c, ok
}

// Namespaces returns the registered namespaces in lexical order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for ns := range r.components {
		names = append(names, ns)
	}

	sort.Strings(names)

	return names
}

// GetAvailableFactories returns all registered operation factories.
func (r *Registry) GetAvailableFactories() []protocol.OperationFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.OperationFactory, 0, len(r.factories))
	for _, f := range r.factories {
		factories = append(factories, f)
	}

	sort.Slice(factories, func(i, j int) bool { return factories[i].ID() < factories[j].ID() })

	return factories
}

// CreateOperation creates a configured operation of the given type.
func (r *Registry) CreateOperation(ctx context.Context, operationType, id string, config map[string]any) (protocol.Operation, error) {
	r.mu.RLock()
	factory, ok := r.factories[operationType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrFactoryNotFound, operationType)
	}

	return factory.Create(ctx, id, config)
}

// OperationSignature looks up the signature of the operation addressed by target.
func (r *Registry) OperationSignature(target models.Entity) (models.OperationSignature, bool) {
	component, ok := r.Component(target.Namespace)
	if !ok {
		return models.OperationSignature{}, false
	}

	return component.Signature().Operation(target.Name)
}

// Callback returns a runtime callback that dispatches to registered components.
func (r *Registry) Callback() protocol.RuntimeCallback {
	var callback protocol.RuntimeCallback

	callback = func(
		ctx context.Context,
		ref models.ComponentReference,
		operation string,
		input *packet.Stream,
		inherent models.InherentData,
		config models.RuntimeConfig,
	) (*packet.Stream, error) {
		component, ok := r.Component(ref.Target.Namespace)
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrComponentNotFound, ref.Target.Namespace)
		}

		target := models.NewEntity(ref.Target.Namespace, operation)
		if _, ok := component.Signature().Operation(operation); !ok {
			return nil, fmt.Errorf("%w: '%s'", protocol.ErrOperationNotFound, target)
		}

		r.logger.DebugContext(ctx, "Dispatching operation", "reference", ref.String(), "operation", operation)

		inv := protocol.NewInvocation(ref.Origin, target, input, inherent)

		return component.Handle(ctx, inv, config, callback)
	}

	return callback
}

// LoadComponentPlugins loads components exported as "Component" from shared objects
// under "{pluginsPath}/components".
func (r *Registry) LoadComponentPlugins(pluginsPath string) ([]NamedComponent, error) {
	return loadPlugin[NamedComponent](r.logger, pluginsPath, "Component")
}

// NamedComponent is the symbol a component plugin exports.
type NamedComponent interface {
	protocol.Component
	Namespace() string
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/components"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup %s in %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not export a %s", ErrInvalidPlugin, p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded component plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
