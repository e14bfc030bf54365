package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"starter/internal/bus"
)

func TestModule_ProvidesBusAndCleansUp(t *testing.T) {
	var b *bus.Bus
	app := fxtest.New(t,
		bus.Module(),
		fx.Provide(bus.AsOption(func() bus.Option { return bus.WithName("fx-test") })),
		fx.Populate(&b),
	)
	app.RequireStart()

	require.NotNil(t, b)
	assert.Equal(t, "fx-test", b.Name())

	_, err := bus.Subscribe(b, "listener", func(context.Context, bus.BaseEvent) error { return nil })
	require.NoError(t, err)
	require.NoError(t, b.PostAndWait(context.Background(), bus.NewBaseEvent(bus.StateInTime), time.Second))

	app.RequireStop()
	assert.Equal(t, 0, b.Subscribers())
}

func TestModule_WithoutOptions(t *testing.T) {
	var b *bus.Bus
	app := fxtest.New(t, bus.Module(), fx.Populate(&b))
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, "starter", b.Name())
}
