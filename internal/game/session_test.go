package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordedEvent struct {
	name string
	data interface{}
}

// recorder is a Broadcaster that keeps every event for inspection
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(event string, data interface{}) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event, data})
	r.mu.Unlock()
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].name == name {
			return r.events[i].data, true
		}
	}
	return nil, false
}

func newTestSession(t *testing.T) (*Session, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	s := NewSession(SessionConfig{
		Broadcaster:  rec,
		Clock:        clock.Now,
		Seed:         99,
		DropInterval: time.Hour, // Spawn task never fires; tests place obstacles explicitly
	})
	t.Cleanup(func() {
		s.mu.Lock()
		s.stopSpawnLocked()
		s.mu.Unlock()
	})
	return s, clock, rec
}

// placePlayer joins id and pins its x position
func placePlayer(t *testing.T, s *Session, id string, x float64) {
	t.Helper()
	if _, ok := s.Join(id, ""); !ok {
		t.Fatalf("Join %s failed", id)
	}
	s.mu.Lock()
	s.roster.Get(id).X = x
	s.mu.Unlock()
}

func addObstacle(s *Session, o Obstacle) {
	s.mu.Lock()
	s.field.Add(o)
	s.mu.Unlock()
}

// TestSessionJoinBroadcastsRoster verifies roster broadcasts on join and leave
func TestSessionJoinBroadcastsRoster(t *testing.T) {
	s, _, rec := newTestSession(t)

	view, ok := s.Join("conn-1", "Alice")
	if !ok {
		t.Fatal("Join should succeed")
	}
	if view.Name != "Alice" || !view.Alive {
		t.Errorf("Unexpected view %+v", view)
	}

	data, ok := rec.last(EventPlayers)
	if !ok {
		t.Fatal("Expected players broadcast after join")
	}
	players := data.(map[string]PlayerView)
	if _, ok := players["conn-1"]; !ok {
		t.Error("Roster broadcast missing joined player")
	}

	s.Leave("conn-1")
	data, _ = rec.last(EventPlayers)
	if len(data.(map[string]PlayerView)) != 0 {
		t.Error("Roster broadcast should be empty after leave")
	}
	if rec.count(EventPlayers) != 2 {
		t.Errorf("Expected 2 players broadcasts, got %d", rec.count(EventPlayers))
	}
}

// TestSessionJoinFullRoomIsSilent verifies rejected joins broadcast nothing
func TestSessionJoinFullRoomIsSilent(t *testing.T) {
	s, _, rec := newTestSession(t)

	for i := 0; i < MaxPlayers; i++ {
		s.Join(fmt.Sprintf("c%d", i), "")
	}
	before := rec.count(EventPlayers)

	if _, ok := s.Join("overflow", "Nope"); ok {
		t.Error("Join should be rejected when full")
	}
	if rec.count(EventPlayers) != before {
		t.Error("Rejected join must not broadcast")
	}
	if len(s.Players()) != MaxPlayers {
		t.Errorf("Expected %d players, got %d", MaxPlayers, len(s.Players()))
	}
}

// TestSessionStartRoundIdempotent verifies start while active is a no-op
func TestSessionStartRoundIdempotent(t *testing.T) {
	s, _, _ := newTestSession(t)
	placePlayer(t, s, "p1", 100)

	if !s.StartRound() {
		t.Fatal("First StartRound should succeed")
	}
	s.mu.Lock()
	firstCancel := fmt.Sprintf("%p", s.spawnCancel)
	s.mu.Unlock()

	if s.StartRound() {
		t.Error("StartRound while active should be a no-op")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != 1 {
		t.Errorf("Expected round 1, got %d", s.round)
	}
	if fmt.Sprintf("%p", s.spawnCancel) != firstCancel {
		t.Error("Second StartRound must not re-arm the spawn task")
	}
}

// TestSessionSpawnOnlyWhileActive verifies spawning is gated by the round
func TestSessionSpawnOnlyWhileActive(t *testing.T) {
	s, _, _ := newTestSession(t)

	if s.SpawnObstacle() {
		t.Error("Spawn should be a no-op while idle")
	}
	if s.DropObstacle(Obstacle{X: 10}) {
		t.Error("DropObstacle should be a no-op while idle")
	}

	placePlayer(t, s, "p1", 100)
	s.StartRound()
	if !s.SpawnObstacle() {
		t.Error("Spawn should succeed during a round")
	}
	if s.ObstacleCount() != 1 {
		t.Errorf("Expected 1 obstacle, got %d", s.ObstacleCount())
	}

	if !s.DropObstacle(Obstacle{X: 10, Y: 20}) {
		t.Error("DropObstacle should succeed during a round")
	}
	if s.ObstacleCount() != 2 {
		t.Errorf("Expected 2 obstacles, got %d", s.ObstacleCount())
	}

	// A spawn task from an older round must not add obstacles
	s.mu.Lock()
	stale := s.spawnLocked(s.round - 1)
	s.mu.Unlock()
	if stale {
		t.Error("Stale spawn task should be ignored")
	}
}

// TestSessionCollisionKillsPlayer is the canonical hit scenario
func TestSessionCollisionKillsPlayer(t *testing.T) {
	s, _, _ := newTestSession(t)
	placePlayer(t, s, "hit", 100)
	placePlayer(t, s, "miss", 400)
	s.StartRound()

	// Advances by 5 at elapsed 0, landing at y=551
	addObstacle(s, Obstacle{X: 120, Y: 546})
	s.Step()

	hit, _ := s.Player("hit")
	miss, _ := s.Player("miss")
	if hit.Alive {
		t.Error("Player under the obstacle should be dead")
	}
	if !miss.Alive {
		t.Error("Player away from the obstacle should survive")
	}
	if !s.Active() {
		t.Error("Round should continue while someone is alive")
	}
}

// TestSessionObstacleFallsFaster verifies y strictly increases and the step grows with time
func TestSessionObstacleFallsFaster(t *testing.T) {
	s, clock, _ := newTestSession(t)
	placePlayer(t, s, "p1", 0)
	s.StartRound()
	addObstacle(s, Obstacle{X: 700, Y: 0})

	var lastY, lastStep float64
	for i := 0; i < 20; i++ {
		clock.Advance(2 * time.Second)
		s.Step()

		raindrops := s.Snapshot().World.Raindrops
		if len(raindrops) != 1 {
			t.Fatalf("tick %d: expected 1 raindrop, got %d", i, len(raindrops))
		}
		y := raindrops[0].Y
		step := y - lastY
		if y <= lastY {
			t.Fatalf("tick %d: y did not increase (%.3f -> %.3f)", i, lastY, y)
		}
		if i > 0 && step <= lastStep {
			t.Fatalf("tick %d: fall step did not grow (%.4f -> %.4f)", i, lastStep, step)
		}
		lastY, lastStep = y, step
	}
}

// TestSessionGameOverOnce verifies the Active -> Idle transition fires exactly once
func TestSessionGameOverOnce(t *testing.T) {
	s, clock, rec := newTestSession(t)

	var ended []time.Duration
	s.OnRoundEnd = func(round uint64, d time.Duration) { ended = append(ended, d) }

	placePlayer(t, s, "a", 100)
	placePlayer(t, s, "b", 500)
	s.StartRound()
	clock.Advance(1500 * time.Millisecond)

	addObstacle(s, Obstacle{X: 110, Y: 550})
	addObstacle(s, Obstacle{X: 510, Y: 550})
	s.Step()

	if s.Active() {
		t.Fatal("Round should end when everyone is dead")
	}
	for i := 0; i < 5; i++ {
		s.Step()
	}

	if rec.count(EventGameOver) != 1 {
		t.Fatalf("Expected exactly 1 gameover, got %d", rec.count(EventGameOver))
	}
	data, _ := rec.last(EventGameOver)
	if ms := data.(int64); ms != 1500 {
		t.Errorf("Expected duration 1500ms, got %d", ms)
	}
	if len(ended) != 1 || ended[0] < 0 {
		t.Errorf("Expected one non-negative OnRoundEnd, got %v", ended)
	}
}

// TestSessionStateEveryTick verifies heartbeats while idle and gameover ordering
func TestSessionStateEveryTick(t *testing.T) {
	s, _, rec := newTestSession(t)

	for i := 0; i < 3; i++ {
		s.Step()
	}
	if rec.count(EventState) != 3 {
		t.Errorf("Expected 3 idle heartbeats, got %d", rec.count(EventState))
	}

	placePlayer(t, s, "a", 100)
	s.StartRound()
	addObstacle(s, Obstacle{X: 110, Y: 550})
	s.Step()

	rec.mu.Lock()
	n := len(rec.events)
	a, b := rec.events[n-2].name, rec.events[n-1].name
	rec.mu.Unlock()
	if a != EventGameOver || b != EventState {
		t.Errorf("Expected gameover then state, got %s then %s", a, b)
	}
}

// TestSessionObstaclesFreezeAfterRound verifies in-flight obstacles stop at round end
func TestSessionObstaclesFreezeAfterRound(t *testing.T) {
	s, clock, _ := newTestSession(t)
	placePlayer(t, s, "a", 100)
	s.StartRound()

	addObstacle(s, Obstacle{X: 110, Y: 550})
	addObstacle(s, Obstacle{X: 700, Y: 100})
	s.Step()
	if s.Active() {
		t.Fatal("Round should be over")
	}

	before := s.Snapshot().World.Raindrops
	clock.Advance(time.Second)
	s.Step()
	after := s.Snapshot().World.Raindrops

	if len(after) != len(before) {
		t.Fatalf("Obstacle count changed from %d to %d", len(before), len(after))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Errorf("Obstacle %d moved after round end: %+v -> %+v", i, before[i], after[i])
		}
	}
	if s.SpawnObstacle() {
		t.Error("No spawning after round end")
	}
}

// TestSessionRestartResetsRound verifies start after gameover clears the field and reseeds time
func TestSessionRestartResetsRound(t *testing.T) {
	s, clock, _ := newTestSession(t)
	placePlayer(t, s, "a", 100)
	s.StartRound()
	firstStart := s.Round().StartedAt

	clock.Advance(3 * time.Second)
	addObstacle(s, Obstacle{X: 110, Y: 550})
	addObstacle(s, Obstacle{X: 700, Y: 10})
	s.Step()
	if s.Active() {
		t.Fatal("Round should be over")
	}
	if s.ObstacleCount() == 0 {
		t.Fatal("Expected frozen obstacles before restart")
	}

	clock.Advance(2 * time.Second)
	if !s.StartRound() {
		t.Fatal("StartRound after gameover should succeed")
	}

	round := s.Round()
	if s.ObstacleCount() != 0 {
		t.Errorf("Expected empty field, got %d", s.ObstacleCount())
	}
	if !round.StartedAt.After(firstStart) || !round.StartedAt.Equal(clock.Now()) {
		t.Errorf("Start time not reseeded: %v", round.StartedAt)
	}
	if round.Round != 2 || round.ElapsedMs != 0 {
		t.Errorf("Unexpected round info %+v", round)
	}
	if p, _ := s.Player("a"); !p.Alive {
		t.Error("Players should be revived for the new round")
	}
}

// TestSessionDisconnectMidRound verifies a leaving player drops out of collisions safely
func TestSessionDisconnectMidRound(t *testing.T) {
	s, _, rec := newTestSession(t)
	placePlayer(t, s, "stay", 100)
	placePlayer(t, s, "go", 500)
	s.StartRound()

	s.Leave("go")
	addObstacle(s, Obstacle{X: 510, Y: 550}) // would have hit "go"
	s.Step()

	if !s.Active() {
		t.Error("Round should continue for the remaining player")
	}
	data, _ := rec.last(EventState)
	world := data.(WorldSnapshot)
	if _, ok := world.Players["go"]; ok {
		t.Error("Departed player still in state broadcast")
	}

	// Remaining player dies: round ends with only them counted
	addObstacle(s, Obstacle{X: 110, Y: 550})
	s.Step()
	if s.Active() {
		t.Error("Round should end when the last remaining player dies")
	}
}

// TestSessionEmptyRoomNeverEnds verifies an empty roster is not a game over
func TestSessionEmptyRoomNeverEnds(t *testing.T) {
	s, _, rec := newTestSession(t)
	s.StartRound()

	for i := 0; i < 3; i++ {
		s.Step()
	}
	if !s.Active() {
		t.Error("Empty room should keep the round running")
	}
	if rec.count(EventGameOver) != 0 {
		t.Error("No gameover for an empty room")
	}
}

// TestSessionDeadPlayerInputIgnored verifies dead players can't move through the session
func TestSessionDeadPlayerInputIgnored(t *testing.T) {
	s, _, _ := newTestSession(t)
	placePlayer(t, s, "dead", 100)
	placePlayer(t, s, "alive", 600)
	s.StartRound()
	addObstacle(s, Obstacle{X: 110, Y: 550})
	s.Step()

	if s.Move("dead", DirRight) || s.Tilt("dead", 10) {
		t.Error("Dead player input should be ignored")
	}
	if p, _ := s.Player("dead"); p.X != 100 {
		t.Errorf("Dead player moved to %.1f", p.X)
	}
	if !s.Move("alive", DirLeft) {
		t.Error("Living player should move")
	}
}

// TestSessionSpawnTask verifies the armed spawn task adds obstacles on its own
func TestSessionSpawnTask(t *testing.T) {
	s := NewSession(SessionConfig{DropInterval: 5 * time.Millisecond, Seed: 1})
	s.Join("p1", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	s.StartRound()

	deadline := time.Now().Add(2 * time.Second)
	for s.ObstacleCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Spawn task never produced an obstacle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSessionStartStop verifies the tick loop runs and stops cleanly
func TestSessionStartStop(t *testing.T) {
	rec := &recorder{}
	s := NewSession(SessionConfig{Broadcaster: rec, TickRate: 100})

	s.Start(context.Background())
	s.Start(context.Background()) // Second start is a no-op
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop() // Should not panic on double stop

	if rec.count(EventState) == 0 {
		t.Error("Expected state heartbeats while running")
	}
	n := rec.count(EventState)
	time.Sleep(50 * time.Millisecond)
	if rec.count(EventState) != n {
		t.Error("Ticks continued after Stop")
	}
}

// TestSessionRestartAfterStop verifies Stop abandons the round so a restarted session can begin another
func TestSessionRestartAfterStop(t *testing.T) {
	rec := &recorder{}
	s := NewSession(SessionConfig{Broadcaster: rec, TickRate: 100})
	s.Join("p1", "Ana")

	s.Start(context.Background())
	if !s.StartRound() {
		t.Fatal("Expected first round to start")
	}
	s.Stop()

	if s.Active() {
		t.Error("Expected no active round after Stop")
	}
	if rec.count(EventGameOver) != 0 {
		t.Error("Stop should not broadcast gameover")
	}

	s.Start(context.Background())
	defer s.Stop()
	if !s.StartRound() {
		t.Fatal("Expected a round to start after restart")
	}
	if !s.Active() {
		t.Error("Expected restarted round to be active")
	}
}

// TestSessionOnTickHook verifies the tick hook sees each snapshot
func TestSessionOnTickHook(t *testing.T) {
	s, _, _ := newTestSession(t)

	var ticks []uint64
	s.OnTick = func(elapsed time.Duration, snap *SessionSnapshot) {
		ticks = append(ticks, snap.Tick)
	}
	s.Step()
	s.Step()

	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Errorf("Unexpected ticks %v", ticks)
	}
	if s.Snapshot().Tick != 2 {
		t.Errorf("Expected latest snapshot tick 2, got %d", s.Snapshot().Tick)
	}
}
