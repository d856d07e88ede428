package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// SessionConfig configures a Session. Zero values select the defaults.
type SessionConfig struct {
	TickRate     int           // Ticks per second (default 30)
	DropInterval time.Duration // Spawn period during a round (default 1s)
	Capacity     int           // Roster capacity (default MaxPlayers)

	Broadcaster Broadcaster // Receives players/state/gameover events
	EventLog    *EventLog   // Optional audit log; must be started by the caller

	Clock func() time.Time // Defaults to time.Now
	Seed  int64            // RNG seed; 0 means time-based
}

// Session is the authoritative coordinator for the single shared room.
// It owns the roster, the obstacle field and the round state; every input,
// spawn and tick runs as one critical section under mu.
type Session struct {
	mu     sync.Mutex
	roster *Roster
	field  *Field

	active    bool
	startTime time.Time
	round     uint64
	tickCount uint64

	tickRate     int
	dropInterval time.Duration
	now          func() time.Time
	rng          *rand.Rand
	out          Broadcaster
	eventLog     *EventLog

	// Spawn task of the current round (nil when idle)
	spawnCancel context.CancelFunc
	spawnDone   chan struct{}

	// Tick task
	ctx      context.Context
	cancel   context.CancelFunc
	tickDone chan struct{}
	running  bool

	latest   atomic.Pointer[SessionSnapshot]
	sequence atomic.Uint64

	// Hooks run synchronously inside the session lock and must not call back into the Session.
	OnRoundStart func(round uint64, players int)
	OnRoundEnd   func(round uint64, duration time.Duration)
	OnTick       func(elapsed time.Duration, snap *SessionSnapshot)
}

// NewSession creates an idle session. No goroutines run until Start.
func NewSession(cfg SessionConfig) *Session {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.DropInterval <= 0 {
		cfg.DropInterval = DefaultDropInterval
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = MaxPlayers
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.EventLog == nil {
		cfg.EventLog = NewEventLog()
	}

	return &Session{
		roster:       NewRoster(cfg.Capacity),
		field:        NewField(),
		tickRate:     cfg.TickRate,
		dropInterval: cfg.DropInterval,
		now:          cfg.Clock,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		out:          cfg.Broadcaster,
		eventLog:     cfg.EventLog,
		ctx:          context.Background(),
	}
}

// SetBroadcaster replaces the broadcast target. Used when the transport is
// constructed after the session.
func (s *Session) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.out = b
	s.mu.Unlock()
}

// Start launches the fixed-rate tick task. It runs until ctx is done or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.tickDone = make(chan struct{})
	ctx, done := s.ctx, s.tickDone
	s.mu.Unlock()

	go s.tickLoop(ctx, done)

	log.Printf("🎮 Session started at %d TPS", s.tickRate)
}

// Stop cancels the tick task and any spawn task and waits for them to exit.
// A running round is abandoned without gameover so a later Start can begin a
// fresh one; its obstacles stay frozen until the next StartRound.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.ctx = context.Background()
	tickDone := s.tickDone
	spawnDone := s.stopSpawnLocked()
	if s.active {
		s.active = false
		log.Printf("⏹️ Round %d abandoned by shutdown", s.round)
	}
	s.mu.Unlock()

	<-tickDone
	if spawnDone != nil {
		<-spawnDone
	}
	log.Println("🛑 Session stopped")
}

func (s *Session) tickLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(s.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Join adds a player for connection id and broadcasts the roster.
// Returns false (and broadcasts nothing) when the room is full.
func (s *Session) Join(id, name string) (PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.roster.Join(id, name, s.rng)
	if !ok {
		log.Printf("⚠️ Join rejected for %s (%d/%d players)", id, s.roster.Len(), s.roster.capacity)
		return PlayerView{}, false
	}

	s.eventLog.EmitSimple(EventTypePlayerJoin, s.tickCount, s.round, id,
		PlayerJoinPayload{PlayerID: id, PlayerName: p.Name, SpawnX: p.X})

	log.Printf("👤 Player joined: %s (%s)", p.Name, id)
	s.broadcastLocked(EventPlayers, s.roster.Views())
	return p.View(), true
}

// Leave removes connection id and broadcasts the roster.
func (s *Session) Leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.roster.Get(id); p != nil {
		s.roster.Leave(id)
		s.eventLog.EmitSimple(EventTypePlayerLeave, s.tickCount, s.round, id,
			PlayerLeavePayload{PlayerID: id, WasAlive: p.Alive})
		log.Printf("👋 Player left: %s (%s)", p.Name, id)
	}

	s.broadcastLocked(EventPlayers, s.roster.Views())
}

// Move applies a discrete move. Unknown ids and dead players are ignored.
func (s *Session) Move(id string, dir Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Move(id, dir)
}

// Tilt applies a proportional move. Unknown ids and dead players are ignored.
func (s *Session) Tilt(id string, delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Tilt(id, delta)
}

// StartRound arms a new round if none is active. It clears the field,
// revives everyone, reseeds the start time and arms the spawn task.
// Returns false if a round is already running.
func (s *Session) StartRound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return false
	}

	s.stopSpawnLocked()
	s.field.Reset()
	s.roster.Revive()
	s.active = true
	s.startTime = s.now()
	s.round++
	s.armSpawnLocked(s.round)

	s.eventLog.EmitSimple(EventTypeRoundStart, s.tickCount, s.round, "",
		RoundStartPayload{Players: s.roster.Len()})
	if s.OnRoundStart != nil {
		s.OnRoundStart(s.round, s.roster.Len())
	}

	log.Printf("🌧️ Round %d started with %d players", s.round, s.roster.Len())
	return true
}

// SpawnObstacle adds one obstacle if a round is active.
func (s *Session) SpawnObstacle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(s.round)
}

// DropObstacle adds an obstacle at an explicit position if a round is active.
func (s *Session) DropObstacle(o Obstacle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.field.Add(o)
	return true
}

func (s *Session) spawnLocked(round uint64) bool {
	if !s.active || round != s.round {
		return false
	}
	s.field.Spawn(s.rng)
	return true
}

// armSpawnLocked starts the spawn task for round.
func (s *Session) armSpawnLocked(round uint64) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.spawnCancel = cancel
	s.spawnDone = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.dropInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.spawnLocked(round)
				s.mu.Unlock()
			}
		}
	}()
}

// stopSpawnLocked cancels the current spawn task and returns its done channel.
// Callers holding mu must not wait on it.
func (s *Session) stopSpawnLocked() chan struct{} {
	if s.spawnCancel == nil {
		return nil
	}
	s.spawnCancel()
	done := s.spawnDone
	s.spawnCancel = nil
	s.spawnDone = nil
	return done
}

// Step runs one simulation tick at the current clock time and broadcasts the
// world state. Idle ticks skip the simulation but still broadcast.
func (s *Session) Step() {
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.tickCount++

	if s.active {
		s.simulateLocked(now)
	}

	snap := s.buildSnapshotLocked(now)
	s.latest.Store(snap)
	s.broadcastLocked(EventState, snap.World)

	if s.OnTick != nil {
		s.OnTick(time.Since(started), snap)
	}
}

func (s *Session) simulateLocked(now time.Time) {
	elapsed := now.Sub(s.startTime)
	elapsedMs := float64(elapsed) / float64(time.Millisecond)

	s.field.Advance(elapsedMs)

	for _, p := range DetectCollisions(s.roster.Alive(), s.field.Obstacles()) {
		s.eventLog.EmitSimple(EventTypePlayerDeath, s.tickCount, s.round, p.ID,
			PlayerDeathPayload{PlayerID: p.ID, X: p.X, ElapsedMs: elapsed.Milliseconds()})
		log.Printf("💧 %s was hit after %dms", p.Name, elapsed.Milliseconds())
	}

	s.field.Prune()

	if s.roster.AllDead() {
		s.endRoundLocked(now)
	}
}

// endRoundLocked flips the round to idle and emits gameover. Obstacles still
// in flight stay frozen in the field until the next StartRound clears them.
func (s *Session) endRoundLocked(now time.Time) {
	s.active = false
	s.stopSpawnLocked()

	duration := now.Sub(s.startTime)
	if duration < 0 {
		duration = 0
	}

	s.eventLog.EmitSimple(EventTypeRoundEnd, s.tickCount, s.round, "",
		RoundEndPayload{DurationMs: duration.Milliseconds(), Players: s.roster.Len()})
	if s.OnRoundEnd != nil {
		s.OnRoundEnd(s.round, duration)
	}

	log.Printf("🏁 Round %d over after %s", s.round, duration.Round(time.Millisecond))
	s.broadcastLocked(EventGameOver, duration.Milliseconds())
}

func (s *Session) broadcastLocked(event string, data interface{}) {
	if s.out == nil {
		return
	}
	s.out.Broadcast(event, data)
}

func (s *Session) roundInfoLocked(now time.Time) RoundInfo {
	info := RoundInfo{Active: s.active, Round: s.round, StartedAt: s.startTime}
	if s.active {
		info.ElapsedMs = now.Sub(s.startTime).Milliseconds()
	}
	return info
}

func (s *Session) buildSnapshotLocked(now time.Time) *SessionSnapshot {
	return &SessionSnapshot{
		Sequence:  s.sequence.Add(1),
		Timestamp: now,
		Tick:      s.tickCount,
		World: WorldSnapshot{
			Players:   s.roster.Views(),
			Raindrops: s.field.Copy(),
		},
		Round:       s.roundInfoLocked(now),
		PlayerCount: s.roster.Len(),
		AliveCount:  s.roster.AliveCount(),
	}
}

// Snapshot returns the most recent tick snapshot without taking the session
// lock. Before the first tick it builds one on demand.
func (s *Session) Snapshot() *SessionSnapshot {
	if snap := s.latest.Load(); snap != nil {
		return snap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSnapshotLocked(s.now())
}

// Players returns the current roster mapping.
func (s *Session) Players() map[string]PlayerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Views()
}

// Round returns the current round state.
func (s *Session) Round() RoundInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundInfoLocked(s.now())
}

// Active reports whether a round is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Player returns the view for id.
func (s *Session) Player(id string) (PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.roster.Get(id)
	if p == nil {
		return PlayerView{}, false
	}
	return p.View(), true
}

// ObstacleCount returns the number of obstacles in the field.
func (s *Session) ObstacleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field.Len()
}
