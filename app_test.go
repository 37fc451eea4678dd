package gekko

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_changeState(t *testing.T) {
	app := &App{
		stateful:     true,
		initialState: 1,
		state:        1,
		finalState:   2,
	}

	// Test changing state
	app.changeState(2)
	if app.nextState != State(2) {
		t.Errorf("The nextState should be set correctly.")
	}
	if !app.stateTransitioning {
		t.Errorf("The stateTransitioning flag should be true.")
	}

	// Test executing state change
	app.executeChangeState(2)
	if app.state != State(2) {
		t.Errorf("The app state should change correctly.")
	}
}

func TestApp_addResources(t *testing.T) {
	// Test setup
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	// Add a resource
	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)

	// Check that the resource was added
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Expect panic when trying to add the same type of resource again
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1) // Try adding resource1 again, should panic
	})

	// Add a resource
	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)

	// Check that the resource was added
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")
}

type counterResource struct {
	calls []string
}

func TestApp_UpdateRunsStagesInOrder(t *testing.T) {
	app := NewAppBuilder().Build()
	res := &counterResource{}
	app.Commands().AddResources(res)

	app.UseSystem(System(func(c *counterResource) { c.calls = append(c.calls, "startup") }).InStage(Startup))
	app.UseSystem(System(func(c *counterResource) { c.calls = append(c.calls, "render") }).InStage(Render))
	app.UseSystem(System(func(c *counterResource) { c.calls = append(c.calls, "update") }).InStage(Update))

	app.Update()
	app.Update()

	assert.Equal(t, []string{"startup", "update", "render", "update", "render"}, res.calls)
	assert.Equal(t, uint64(2), app.Frame())
}

func TestApp_CommandsFlushPerStage(t *testing.T) {
	type marker struct{ n int }

	app := NewAppBuilder().Build()
	var spawned EntityId
	seenInUpdate := 0

	app.UseSystem(System(func(cmd *Commands) {
		if app.Frame() == 0 {
			spawned = cmd.AddEntity(marker{n: 1})
		}
	}).InStage(PreUpdate))
	app.UseSystem(System(func(cmd *Commands) {
		MakeQuery1[marker](cmd).Map(func(EntityId, *marker) bool {
			seenInUpdate++
			return true
		})
	}).InStage(Update))

	app.Update()
	assert.Equal(t, 1, seenInUpdate)

	cmd := app.Commands()
	cmd.RemoveComponents(spawned, marker{})
	app.FlushCommands()
	assert.True(t, cmd.HasEntity(spawned))
	assert.False(t, HasComponent[marker](cmd, spawned))
}

func TestApp_RunStopsOnExit(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(cmd *Commands) {
		if app.Frame() == 2 {
			cmd.Exit()
		}
	}).InStage(Update))

	app.Run()

	assert.Equal(t, uint64(3), app.Frame())
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(*counterResource) {}))

	assert.Panics(t, func() { app.Update() })
}

func TestTime_DeltaSeconds(t *testing.T) {
	tm := &Time{}
	start := time.Unix(100, 0)
	tm.Advance(start)
	assert.Zero(t, tm.DeltaSeconds())

	tm.Advance(start.Add(16 * time.Millisecond))
	assert.InDelta(t, 0.016, tm.DeltaSeconds(), 1e-6)
	assert.Equal(t, 16*time.Millisecond, tm.Elapsed)
}

func TestInput_SetKey(t *testing.T) {
	input := &Input{}

	input.SetKey(Key1, true)
	assert.True(t, input.JustPressed[Key1])
	assert.True(t, input.Pressed[Key1])

	input.SetKey(Key1, true)
	assert.False(t, input.JustPressed[Key1])

	input.SetKey(Key1, false)
	assert.True(t, input.JustReleased[Key1])
	assert.False(t, input.Pressed[Key1])

	input.SetKey(-1, true)
}

func TestEnsureSingleRenderer(t *testing.T) {
	app := NewAppBuilder().Build()
	EnsureSingleRenderer(app, "wgpu")
	EnsureSingleRenderer(app, "wgpu")
	assert.True(t, HasResource[RendererTag](app))

	assert.Panics(t, func() { EnsureSingleRenderer(app, "other") })
}
