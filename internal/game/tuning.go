package game

import "time"

// Field geometry and round rules. These are fixed by the game design and
// shared with the browser client, so they are not part of runtime config.
const (
	FieldWidth  = 800.0
	FieldHeight = 600.0
	PlayerWidth = 50.0

	MaxPlayers = 12

	MoveStep  = 10.0 // Displacement per discrete move input
	TiltScale = 2.0  // Displacement per unit of tilt delta

	// Catch band: an obstacle can only hit a player while CatchBandTop < y < CatchBandBottom.
	CatchBandTop    = 550.0
	CatchBandBottom = 600.0

	BaseSpeed        = 5.0     // Obstacle fall per tick at round start
	SpeedRampDivisor = 10000.0 // Extra fall per tick = elapsedMs / SpeedRampDivisor

	DefaultTickRate     = 30
	DefaultDropInterval = time.Second
)

// ObstacleSpeed returns the per-tick fall distance after elapsedMs of round time.
func ObstacleSpeed(elapsedMs float64) float64 {
	return BaseSpeed + elapsedMs/SpeedRampDivisor
}

// clampX keeps a player's left edge inside the field.
func clampX(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > FieldWidth-PlayerWidth {
		return FieldWidth - PlayerWidth
	}
	return x
}
