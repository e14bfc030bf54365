package bus

import (
	"context"

	"go.uber.org/fx"
)

// Params are the optional inputs of the fx module. Options supplied in the
// "bus.options" value group are applied to the provided bus.
type Params struct {
	fx.In

	Options []Option `group:"bus.options"`
}

// Module provides a private *Bus to an fx application and removes every
// subscription when the application stops.
func Module() fx.Option {
	return fx.Module("bus",
		fx.Provide(ProvideBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideBus builds the bus from the collected options.
func ProvideBus(p Params) *Bus {
	return New(p.Options...)
}

// AsOption annotates an Option constructor for the "bus.options" group.
func AsOption(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"bus.options"`))
}

func registerLifecycle(lc fx.Lifecycle, b *Bus) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			b.UnsubscribeAll()
			return nil
		},
	})
}
