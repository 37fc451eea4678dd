package gekko

import (
	"time"
)

type Time struct {
	Time    time.Time
	Dt      time.Duration
	Elapsed time.Duration
}

// DeltaSeconds returns the last frame duration in seconds.
func (t *Time) DeltaSeconds() float32 {
	return float32(t.Dt.Seconds())
}

// Advance moves the clock to now. The first call after a zero Time only
// sets the reference point.
func (t *Time) Advance(now time.Time) {
	if !t.Time.IsZero() {
		t.Dt = now.Sub(t.Time)
		t.Elapsed += t.Dt
	}
	t.Time = now
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	app.UseSystem(
		System(timeSystem).
			InStage(Prelude).
			RunAlways(),
	)
}

func timeSystem(timeResource *Time) {
	timeResource.Advance(time.Now())
}
