package registry

import (
	"github.com/dukex/flowroute/pkg/nodes/log"
	switchnode "github.com/dukex/flowroute/pkg/nodes/switch"
	"github.com/dukex/flowroute/pkg/nodes/transform"
)

// RegisterDefaultNodes registers the switch operation factory and the built-in components.
func (r *Registry) RegisterDefaultNodes(opts ...switchnode.Option) {
	r.RegisterFactory(switchnode.NewSwitchNodeFactory(opts...))

	transformComponent := transform.NewTransformComponent(r.logger)
	r.RegisterComponent(transformComponent.Namespace(), transformComponent)

	logComponent := log.NewLogComponent(r.logger)
	r.RegisterComponent(logComponent.Namespace(), logComponent)
}
