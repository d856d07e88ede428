package game

// InCatchBand reports whether an obstacle at height y can hit a player.
// Both ends are exclusive: at y == CatchBandBottom the obstacle is already pruned.
func InCatchBand(y float64) bool {
	return y > CatchBandTop && y < CatchBandBottom
}

// Hits reports whether obstacle o strikes player p.
func Hits(o Obstacle, p *Player) bool {
	if !InCatchBand(o.Y) {
		return false
	}
	left, right := p.Hitbox()
	return o.X >= left && o.X < right
}

// DetectCollisions marks every living player struck by an obstacle as dead and
// returns the players that died. A player killed by one obstacle is skipped
// for the rest of the pass.
func DetectCollisions(players []*Player, obstacles []Obstacle) []*Player {
	var dead []*Player

	for i := range obstacles {
		o := obstacles[i]
		if !InCatchBand(o.Y) {
			continue
		}
		for _, p := range players {
			if !p.Alive {
				continue
			}
			if Hits(o, p) {
				p.Alive = false
				dead = append(dead, p)
			}
		}
	}

	return dead
}
