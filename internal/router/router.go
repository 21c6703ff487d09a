package router

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/meshrelay/relay/internal/bridge"
	"github.com/meshrelay/relay/internal/envelope"
	"github.com/meshrelay/relay/internal/registry"
	"github.com/meshrelay/relay/internal/rooms"
)

// Router resolves envelope destinations and performs delivery.
type Router interface {
	// Start begins the event loop and subscribes to the fanout bridge.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the loop and the extensions.
	Stop(ctx context.Context) error

	// Register adds a transport connection.
	Register(c Conn)

	// Deregister removes a connection and fires the teardown cascade.
	Deregister(connID string)

	// Identify declares the identity for a connection. False when the
	// identity was already set.
	Identify(connID, identity string) bool

	// Join adds the connection to a room. Idempotent.
	Join(connID, room string) bool

	// Leave removes the connection from a room.
	Leave(connID, room string) bool

	// Route routes one envelope originating from a local connection.
	Route(originID string, env envelope.Envelope)

	// Stats returns current router statistics.
	Stats() Stats
}

type opKind int

const (
	opRegister opKind = iota
	opDeregister
	opIdentify
	opJoin
	opLeave
	opRoute
	opReplay
)

// op is one unit of work for the event loop. Every mutation funnels
// through the ops channel, which is what serializes the engine.
type op struct {
	kind     opKind
	conn     Conn
	connID   string
	identity string
	room     string
	env      envelope.Envelope
	reply    chan bool
}

type counterKey struct {
	kind string
	dest string
}

// router is the internal implementation.
type router struct {
	cfg    Config
	logger *slog.Logger

	bridge bridge.Bridge
	exts   *ExtensionSet
	sender Sender

	// Loop-owned state. Never touched off the event loop goroutine.
	reg   *registry.Registry
	rooms *rooms.Manager
	conns map[string]Conn

	ops chan op

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu             sync.RWMutex
	connGauge      int
	roomGauge      int
	routed         int64
	delivered      int64
	droppedStale   int64
	malformed      int64
	published      int64
	publishErrors  int64
	bridgeReceived int64
	bridgeEchoes   int64
	counters       map[counterKey]int64
}

// New creates a Router. The bridge may be nil, which scopes the router
// to this single instance. Extensions in exts are started and stopped
// with the router.
func New(cfg Config, br bridge.Bridge, exts *ExtensionSet, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BridgeChannel == "" {
		cfg.BridgeChannel = bridge.DefaultChannel
	}
	if cfg.OpBuffer < 1 {
		cfg.OpBuffer = 1024
	}
	if exts == nil {
		exts = &ExtensionSet{}
	}

	rt := &router{
		cfg:      cfg,
		logger:   logger,
		bridge:   br,
		exts:     exts,
		reg:      registry.New(),
		rooms:    rooms.NewManager(),
		conns:    make(map[string]Conn),
		ops:      make(chan op, cfg.OpBuffer),
		counters: make(map[counterKey]int64),
	}
	rt.sender = &loopSender{rt: rt}
	// Usable before Start for tests that drive the loop directly.
	rt.ctx = context.Background()
	return rt
}

// Start begins the event loop.
func (rt *router) Start(ctx context.Context) error {
	rt.ctx, rt.cancel = context.WithCancel(ctx)

	if err := rt.exts.start(rt.ctx); err != nil {
		rt.cancel()
		return err
	}

	if rt.bridge != nil {
		err := rt.bridge.Subscribe(rt.ctx, rt.cfg.BridgeChannel, rt.onBridgePayload)
		if err != nil {
			// Degraded to single-instance scope; local delivery is
			// unaffected.
			rt.logger.Warn("fanout bridge unavailable, running single-instance",
				"error", err,
			)
			rt.bridge = nil
		}
	}

	rt.wg.Add(1)
	go rt.loop()

	rt.logger.Info("router started",
		"instance_id", rt.cfg.InstanceID,
		"bridge", rt.bridge != nil,
		"extensions", rt.exts.Names(),
	)
	return nil
}

// Stop gracefully shuts down the router.
func (rt *router) Stop(ctx context.Context) error {
	rt.logger.Info("stopping router")

	if rt.cancel != nil {
		rt.cancel()
	}

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		rt.logger.Info("router stopped")
	case <-ctx.Done():
		rt.logger.Warn("router stop timed out")
	}

	rt.exts.stop(ctx)
	return nil
}

func (rt *router) Register(c Conn) {
	rt.submit(op{kind: opRegister, conn: c})
}

func (rt *router) Deregister(id string) {
	rt.submit(op{kind: opDeregister, connID: id})
}

// Identify blocks until the loop applies the command and reports the
// outcome.
func (rt *router) Identify(connID, identity string) bool {
	return rt.ask(op{kind: opIdentify, connID: connID, identity: identity})
}

func (rt *router) Join(connID, room string) bool {
	return rt.ask(op{kind: opJoin, connID: connID, room: room})
}

func (rt *router) Leave(connID, room string) bool {
	return rt.ask(op{kind: opLeave, connID: connID, room: room})
}

func (rt *router) Route(originID string, env envelope.Envelope) {
	rt.submit(op{kind: opRoute, connID: originID, env: env})
}

// Stats returns current statistics.
func (rt *router) Stats() Stats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	counters := make([]CounterSample, 0, len(rt.counters))
	for k, v := range rt.counters {
		counters = append(counters, CounterSample{Kind: k.kind, Destination: k.dest, Count: v})
	}
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].Kind != counters[j].Kind {
			return counters[i].Kind < counters[j].Kind
		}
		return counters[i].Destination < counters[j].Destination
	})

	return Stats{
		Connections:    rt.connGauge,
		Rooms:          rt.roomGauge,
		Routed:         rt.routed,
		Delivered:      rt.delivered,
		DroppedStale:   rt.droppedStale,
		Malformed:      rt.malformed,
		Published:      rt.published,
		PublishErrors:  rt.publishErrors,
		BridgeReceived: rt.bridgeReceived,
		BridgeEchoes:   rt.bridgeEchoes,
		Counters:       counters,
	}
}

// submit enqueues an op, dropping it if the router has shut down.
func (rt *router) submit(o op) {
	select {
	case rt.ops <- o:
	case <-rt.ctx.Done():
	}
}

// ask enqueues an op carrying a reply channel and waits for the loop.
func (rt *router) ask(o op) bool {
	o.reply = make(chan bool, 1)
	select {
	case rt.ops <- o:
	case <-rt.ctx.Done():
		return false
	}
	select {
	case ok := <-o.reply:
		return ok
	case <-rt.ctx.Done():
		return false
	}
}

// loop is the single-threaded reactor.
func (rt *router) loop() {
	defer rt.wg.Done()

	for {
		select {
		case <-rt.ctx.Done():
			return
		case o := <-rt.ops:
			rt.handle(o)
		}
	}
}

func (rt *router) handle(o op) {
	switch o.kind {
	case opRegister:
		rt.handleRegister(o.conn)
	case opDeregister:
		rt.handleDeregister(o.connID)
	case opIdentify:
		o.reply <- rt.handleIdentify(o.connID, o.identity)
	case opJoin:
		o.reply <- rt.handleJoin(o.connID, o.room)
	case opLeave:
		o.reply <- rt.handleLeave(o.connID, o.room)
	case opRoute:
		rt.handleRoute(o.connID, o.env, false)
	case opReplay:
		rt.handleRoute(o.connID, o.env, true)
	}
}

func (rt *router) handleRegister(c Conn) {
	if c == nil {
		return
	}
	rt.conns[c.ID()] = c
	rt.reg.Register(c.ID())
	rt.setGauges()

	rt.exts.each(func(e Extension) {
		if obs, ok := e.(ConnObserver); ok {
			obs.ConnectionOpened(c.ID())
		}
	})

	rt.logger.Debug("connection registered", "conn_id", c.ID())
}

// handleDeregister is the single teardown signal: membership cleanup
// first, then every extension's cascade. Skipping either leaks rooms
// or peer sessions indefinitely under churn.
func (rt *router) handleDeregister(connID string) {
	if rt.reg.Deregister(connID) == nil {
		return
	}
	delete(rt.conns, connID)

	removed := rt.rooms.RemoveConnection(connID)
	rt.setGauges()

	rt.exts.each(func(e Extension) {
		e.ConnectionClosed(connID, rt.sender)
	})

	rt.logger.Debug("connection deregistered",
		"conn_id", connID,
		"rooms_left", len(removed),
	)
}

func (rt *router) handleIdentify(connID, identity string) bool {
	ok := rt.reg.SetIdentity(connID, identity)
	if ok {
		rt.exts.each(func(e Extension) {
			if obs, isObs := e.(ConnObserver); isObs {
				obs.ConnectionIdentified(connID, identity)
			}
		})
	}
	return ok
}

func (rt *router) handleJoin(connID, room string) bool {
	if _, known := rt.reg.Get(connID); !known {
		return false
	}
	ok := rt.rooms.Join(connID, room)
	rt.setGauges()
	return ok
}

func (rt *router) handleLeave(connID, room string) bool {
	ok := rt.rooms.Leave(connID, room)
	rt.setGauges()
	return ok
}

// handleRoute resolves the delivery set and delivers. Replayed bridge
// events are never re-published: that is what stops infinite
// propagation between instances.
func (rt *router) handleRoute(origin string, env envelope.Envelope, replay bool) {
	if err := env.Validate(); err != nil {
		rt.logger.Warn("dropping malformed envelope",
			"origin", origin,
			"kind", env.Kind,
			"error", err,
		)
		rt.mu.Lock()
		rt.malformed++
		rt.mu.Unlock()
		return
	}

	rt.mu.Lock()
	rt.routed++
	rt.counters[counterKey{kind: env.Kind, dest: string(env.Destination)}]++
	rt.mu.Unlock()

	switch env.Destination {
	case envelope.DestinationSelf:
		rt.deliverTo(origin, env)
	case envelope.DestinationOthers:
		rt.deliverEach(env, origin)
	case envelope.DestinationAll:
		rt.deliverEach(env, "")
	case envelope.DestinationRoom:
		rt.deliverRoom(env.Room, origin, env)
	}

	if replay {
		return
	}

	if env.Destination != envelope.DestinationSelf {
		rt.publish(env)
	}

	rt.exts.each(func(e Extension) {
		if e.HandlesEnvelope(env) {
			e.HandleEnvelope(origin, env, rt.sender)
		}
	})
}

// deliverTo delivers to one connection. A stale connection between
// enumeration and send is swallowed: delivery is best-effort.
func (rt *router) deliverTo(connID string, env envelope.Envelope) bool {
	c, ok := rt.conns[connID]
	if !ok || !c.Deliver(env) {
		rt.mu.Lock()
		rt.droppedStale++
		rt.mu.Unlock()
		return false
	}
	rt.mu.Lock()
	rt.delivered++
	rt.mu.Unlock()
	return true
}

func (rt *router) deliverEach(env envelope.Envelope, exclude string) {
	for id := range rt.conns {
		if id == exclude {
			continue
		}
		rt.deliverTo(id, env)
	}
}

func (rt *router) deliverRoom(room, exclude string, env envelope.Envelope) {
	for _, id := range rt.rooms.Members(room) {
		if id == exclude {
			continue
		}
		rt.deliverTo(id, env)
	}
}

// publish replicates a broadcast-scope envelope to sibling instances.
// Fire-and-forget: failure costs cross-instance reach, never local
// delivery.
func (rt *router) publish(env envelope.Envelope) {
	if rt.bridge == nil {
		return
	}

	data, err := bridge.EventFromEnvelope(rt.cfg.InstanceID, env).Encode()
	if err != nil {
		rt.logger.Warn("failed to encode bridge event", "kind", env.Kind, "error", err)
		return
	}

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if err := rt.bridge.Publish(rt.ctx, rt.cfg.BridgeChannel, data); err != nil {
			rt.logger.Warn("bridge publish failed, local delivery unaffected", "error", err)
			rt.mu.Lock()
			rt.publishErrors++
			rt.mu.Unlock()
			return
		}
		rt.mu.Lock()
		rt.published++
		rt.mu.Unlock()
	}()
}

// onBridgePayload runs on the bridge's goroutine: decode, drop echoes,
// and hand the replay to the event loop.
func (rt *router) onBridgePayload(payload []byte) {
	ev, err := bridge.DecodeEvent(payload)
	if err != nil {
		rt.logger.Warn("dropping undecodable bridge event", "error", err)
		return
	}

	if ev.Origin == rt.cfg.InstanceID {
		rt.mu.Lock()
		rt.bridgeEchoes++
		rt.mu.Unlock()
		return
	}

	rt.mu.Lock()
	rt.bridgeReceived++
	rt.mu.Unlock()

	rt.submit(op{kind: opReplay, connID: ev.From, env: ev.Envelope()})
}

// setGauges refreshes the connection and room gauges. Loop-only.
func (rt *router) setGauges() {
	rt.mu.Lock()
	rt.connGauge = rt.reg.Len()
	rt.roomGauge = rt.rooms.RoomCount()
	rt.mu.Unlock()
}

// loopSender implements Sender on top of the loop-owned state. Only
// extension callbacks, which already run on the loop, may use it.
type loopSender struct {
	rt *router
}

func (s *loopSender) SendTo(connID string, env envelope.Envelope) bool {
	return s.rt.deliverTo(connID, env)
}

func (s *loopSender) SendToRoom(room, exclude string, env envelope.Envelope) {
	env.Destination = envelope.DestinationRoom
	env.Room = room
	s.rt.deliverRoom(room, exclude, env)
	s.rt.publish(env)
}

func (s *loopSender) InstanceID() string {
	return s.rt.cfg.InstanceID
}
