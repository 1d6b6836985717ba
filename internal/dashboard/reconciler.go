// Package dashboard reconciles server-pushed events and on-demand full-state
// pulls into one consistent render model per role. Events are never trusted
// for state; every one of them only triggers a fresh pull, which replaces the
// model wholesale.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/pool-dashboard/internal/countdown"
	"github.com/example/pool-dashboard/internal/gazetteer"
	"github.com/example/pool-dashboard/internal/models"
	"github.com/example/pool-dashboard/internal/observability"
	"github.com/example/pool-dashboard/internal/rank"
	"github.com/example/pool-dashboard/internal/stream"
)

// Facade is the subset of upstream operations the reconciler pulls from.
type Facade interface {
	PassengerDashboard(ctx context.Context, passengerID string) (*models.PassengerDashboard, error)
	DriverDashboard(ctx context.Context, cabID string) (*models.DriverDashboard, error)
	AllCabs(ctx context.Context) ([]models.Cab, error)
	CancelRide(ctx context.Context, rideID, reason string) error
}

// Subscription is a live event-stream connection owned by the reconciler.
type Subscription interface {
	Close()
}

// StreamOpener establishes the event stream for one subject. The reconciler
// holds at most one open subscription at a time and always closes the old
// one before opening another.
type StreamOpener func(ctx context.Context, subjectID string, onEvent func(stream.Event)) Subscription

// Options wires a Reconciler.
type Options struct {
	Role       Role
	Facade     Facade
	OpenStream StreamOpener
	Publish    func(RenderModel)
	Logger     *slog.Logger

	NearbyRadiusKm    float64
	PoolWindowSeconds int

	// Timer may be preset by tests to drive a synthetic clock.
	Timer *countdown.Timer
}

// Reconciler owns the render model for one role. All mutation happens on a
// single goroutine (Run) consuming an internal message channel; exported
// methods only post messages, so there is exactly one writer.
type Reconciler struct {
	role       Role
	facade     Facade
	openStream StreamOpener
	publishFn  func(RenderModel)
	logger     *slog.Logger
	radiusKm   float64
	windowSecs int
	timer      *countdown.Timer

	msgs chan message
	done chan struct{}

	// runCtx is set once at the top of Run; pulls inherit it so shutdown
	// cancels anything still in flight.
	runCtx context.Context

	// Loop-owned; never touched outside Run.
	gen       uint64
	subjectID string
	pickupRef *models.Coord
	sub       Subscription
	pulling   bool
	pending   bool
	deadline  time.Time
	model     RenderModel

	mu     sync.RWMutex
	latest RenderModel
}

type message any

type selectSubjectMsg struct{ id string }

type pickupRefMsg struct{ ref *models.Coord }

type streamEventMsg struct {
	gen   uint64
	event stream.Event
}

type pullDoneMsg struct {
	gen        uint64
	err        error
	activeRide *models.Ride
	activePool *models.Pool
	history    []models.Ride
	riders     []models.Ride
	cabs       []models.Cab
	took       time.Duration
}

type countdownTickMsg struct {
	gen       uint64
	remaining int
}

type countdownExpiredMsg struct{ gen uint64 }

type cancelRideMsg struct{ rideID, reason string }

type cancelDoneMsg struct {
	gen uint64
	err error
}

func New(opts Options) *Reconciler {
	timer := opts.Timer
	if timer == nil {
		timer = &countdown.Timer{}
	}
	r := &Reconciler{
		role:       opts.Role,
		facade:     opts.Facade,
		openStream: opts.OpenStream,
		publishFn:  opts.Publish,
		logger:     opts.Logger,
		radiusKm:   opts.NearbyRadiusKm,
		windowSecs: opts.PoolWindowSeconds,
		timer:      timer,
		msgs:       make(chan message, 64),
		done:       make(chan struct{}),
	}
	if r.radiusKm <= 0 {
		r.radiusKm = 10
	}
	if r.windowSecs <= 0 {
		r.windowSecs = 60
	}
	r.model = RenderModel{Role: r.role, State: StateIdle}
	r.latest = r.model
	return r
}

// SelectSubject activates a subject for this role, tearing down any prior
// subscription, countdown, and in-flight pull first. An empty id deselects.
func (r *Reconciler) SelectSubject(id string) { r.post(selectSubjectMsg{id: id}) }

// SetPickupReference sets the coordinate nearby cabs are ranked against and
// triggers a refresh so the ranking appears.
func (r *Reconciler) SetPickupReference(c models.Coord) { r.post(pickupRefMsg{ref: &c}) }

// CancelRide forwards a cancellation to the upstream and refreshes afterward.
func (r *Reconciler) CancelRide(rideID, reason string) {
	r.post(cancelRideMsg{rideID: rideID, reason: reason})
}

// Model returns the most recently published render model.
func (r *Reconciler) Model() RenderModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

func (r *Reconciler) post(m message) {
	select {
	case r.msgs <- m:
	case <-r.done:
	}
}

// Run consumes messages until ctx is cancelled. It is the only goroutine
// that mutates the render model.
func (r *Reconciler) Run(ctx context.Context) {
	r.runCtx = ctx
	defer close(r.done)
	defer r.teardown()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.msgs:
			switch m := m.(type) {
			case selectSubjectMsg:
				r.handleSelect(ctx, m.id)
			case pickupRefMsg:
				r.handlePickupRef(m.ref)
			case streamEventMsg:
				r.handleStreamEvent(m)
			case pullDoneMsg:
				r.handlePullDone(ctx, m)
			case countdownTickMsg:
				r.handleTick(m)
			case countdownExpiredMsg:
				r.handleExpired(m)
			case cancelRideMsg:
				r.handleCancel(ctx, m)
			case cancelDoneMsg:
				r.handleCancelDone(m)
			}
		}
	}
}

func (r *Reconciler) teardown() {
	if r.sub != nil {
		r.sub.Close()
		r.sub = nil
	}
	r.timer.Stop()
}

func (r *Reconciler) handleSelect(ctx context.Context, id string) {
	// Full teardown of the previous subject: the generation bump makes any
	// late pull, tick, or event for it a stale discard.
	r.teardown()
	r.gen++
	r.pulling = false
	r.pending = false
	r.deadline = time.Time{}
	r.subjectID = id

	if id == "" {
		r.model = RenderModel{Role: r.role, State: StateIdle}
		r.publish()
		return
	}

	r.logger.Info("subject selected", "role", string(r.role), "subject", id)
	r.model = RenderModel{Role: r.role, SubjectID: id, State: StateLoading}
	r.publish()
	r.startPull(ctx)
}

func (r *Reconciler) handlePickupRef(ref *models.Coord) {
	r.pickupRef = ref
	if r.subjectID != "" {
		r.triggerRefresh(r.runCtx)
	}
}

func (r *Reconciler) handleStreamEvent(m streamEventMsg) {
	if m.gen != r.gen {
		observability.StaleResultsTotal.WithLabelValues(string(r.role)).Inc()
		return
	}
	kind := m.event.Kind
	r.logger.Info("stream event", "role", string(r.role), "kind", string(kind))
	r.model.Notice = &Notice{
		Kind:     string(kind),
		Message:  kind.Message(),
		Severity: kind.Severity(),
		At:       time.Now(),
	}
	r.triggerRefresh(r.runCtx)
}

func (r *Reconciler) handleExpired(m countdownExpiredMsg) {
	if m.gen != r.gen {
		observability.StaleResultsTotal.WithLabelValues(string(r.role)).Inc()
		return
	}
	observability.CountdownExpiriesTotal.WithLabelValues(string(r.role)).Inc()
	r.logger.Info("pool window expired, refreshing", "role", string(r.role), "subject", r.subjectID)
	// The server is assumed to have transitioned the pool by now; only a
	// fresh pull can tell us the outcome.
	r.triggerRefresh(r.runCtx)
}

func (r *Reconciler) handleTick(m countdownTickMsg) {
	if m.gen != r.gen || r.model.Countdown == nil {
		return
	}
	cd := *r.model.Countdown
	cd.RemainingSeconds = m.remaining
	r.model.Countdown = &cd
	r.publish()
}

func (r *Reconciler) handleCancel(ctx context.Context, m cancelRideMsg) {
	gen := r.gen
	go func() {
		err := r.facade.CancelRide(ctx, m.rideID, m.reason)
		r.post(cancelDoneMsg{gen: gen, err: err})
	}()
}

func (r *Reconciler) handleCancelDone(m cancelDoneMsg) {
	if m.gen != r.gen {
		observability.StaleResultsTotal.WithLabelValues(string(r.role)).Inc()
		return
	}
	if m.err != nil {
		r.logger.Warn("cancel ride failed", "role", string(r.role), "error", m.err)
		r.model.Notice = &Notice{
			Kind:     "CANCEL_FAILED",
			Message:  "Cancel failed: " + m.err.Error(),
			Severity: stream.SeverityWarning,
			At:       time.Now(),
		}
		r.publish()
		return
	}
	r.model.Notice = &Notice{
		Kind:     "RIDE_CANCELLED",
		Message:  "Ride cancelled",
		Severity: stream.SeverityWarning,
		At:       time.Now(),
	}
	r.triggerRefresh(r.runCtx)
}

// triggerRefresh coalesces overlapping refresh causes: while a pull is in
// flight, any number of new triggers collapse into exactly one follow-up.
func (r *Reconciler) triggerRefresh(ctx context.Context) {
	if r.subjectID == "" {
		return
	}
	if r.pulling {
		r.pending = true
		return
	}
	if r.model.State == StateReady {
		r.model.State = StateRefreshing
		r.publish()
	}
	r.startPull(ctx)
}

func (r *Reconciler) startPull(ctx context.Context) {
	r.pulling = true
	gen := r.gen
	subject := r.subjectID
	ref := r.pickupRef

	go func() {
		start := time.Now()
		out := pullDoneMsg{gen: gen}
		switch r.role {
		case RoleDriver:
			snap, err := r.facade.DriverDashboard(ctx, subject)
			if err != nil {
				out.err = err
				break
			}
			out.activePool = snap.ActivePool
			out.riders = snap.Riders
		default:
			snap, err := r.facade.PassengerDashboard(ctx, subject)
			if err != nil {
				out.err = err
				break
			}
			out.activeRide = snap.ActiveRide
			out.activePool = snap.ActivePool
			out.history = snap.RideHistory
			if ref != nil {
				// Nearby cabs are part of the same refresh; a cab listing
				// failure degrades the ranking but not the snapshot.
				if cabs, err := r.facade.AllCabs(ctx); err == nil {
					out.cabs = cabs
				} else {
					r.logger.Warn("cab listing failed", "role", string(r.role), "error", err)
				}
			}
		}
		out.took = time.Since(start)
		r.post(out)
	}()
}

func (r *Reconciler) handlePullDone(ctx context.Context, m pullDoneMsg) {
	if m.gen != r.gen {
		// A pull that outlived its subject must not touch the model.
		observability.StaleResultsTotal.WithLabelValues(string(r.role)).Inc()
		return
	}
	r.pulling = false
	observability.RefreshDuration.WithLabelValues(string(r.role)).Observe(m.took.Seconds())

	if m.err != nil {
		observability.RefreshesTotal.WithLabelValues(string(r.role), "error").Inc()
		r.logger.Warn("dashboard pull failed", "role", string(r.role), "subject", r.subjectID, "error", m.err)
		r.model.State = StateReady
		r.model.Error = m.err.Error()
	} else {
		observability.RefreshesTotal.WithLabelValues(string(r.role), "ok").Inc()
		r.applySnapshot(m)
	}

	// First pull done: the subscription opens only after the initial render.
	if r.sub == nil && r.openStream != nil {
		gen := r.gen
		r.sub = r.openStream(ctx, r.subjectID, func(e stream.Event) {
			r.post(streamEventMsg{gen: gen, event: e})
		})
	}

	if r.pending {
		r.pending = false
		r.model.State = StateRefreshing
		r.publish()
		r.startPull(ctx)
		return
	}
	r.model.State = StateReady
	r.publish()
}

// applySnapshot replaces the render model wholesale from a fresh pull. No
// field-by-field merging with the prior snapshot ever happens here.
func (r *Reconciler) applySnapshot(m pullDoneMsg) {
	model := RenderModel{
		Role:        r.role,
		SubjectID:   r.subjectID,
		ActiveRide:  m.activeRide,
		ActivePool:  m.activePool,
		RideHistory: m.history,
		Riders:      m.riders,
		Notice:      r.model.Notice,
	}

	if m.activeRide != nil {
		model.PickupName = gazetteer.Resolve(m.activeRide.Pickup())
		model.DropName = gazetteer.Resolve(m.activeRide.Drop())
	}

	if r.pickupRef != nil && len(m.cabs) > 0 {
		available := make([]models.Cab, 0, len(m.cabs))
		for _, c := range m.cabs {
			if c.Status == models.CabAvailable {
				available = append(available, c)
			}
		}
		model.NearbyCabs = rank.Rank(*r.pickupRef, available, r.radiusKm)
	}

	pool := m.activePool
	if pool != nil && pool.Status == models.PoolForming && pool.WindowExpiresAt != nil && !pool.WindowExpiresAt.IsZero() {
		deadline := pool.WindowExpiresAt.Time
		model.Countdown = &CountdownView{
			ExpiresAt:        deadline,
			RemainingSeconds: countdown.Remaining(r.now(), deadline),
			WindowSeconds:    r.windowLength(pool, deadline),
		}
		if !deadline.Equal(r.deadline) {
			r.deadline = deadline
			gen := r.gen
			r.timer.Start(deadline,
				func(remaining int) { r.post(countdownTickMsg{gen: gen, remaining: remaining}) },
				func() { r.post(countdownExpiredMsg{gen: gen}) },
			)
		}
	} else {
		// A snapshot without a forming pool ends any running countdown; a
		// stale countdown must never outlive the pool it belonged to.
		r.timer.Stop()
		r.deadline = time.Time{}
	}

	r.model = model
}

// windowLength derives the pool's total window from server timestamps when
// both ends are present, falling back to the configured default.
func (r *Reconciler) windowLength(pool *models.Pool, deadline time.Time) int {
	if !pool.CreatedAt.IsZero() {
		if secs := int(deadline.Sub(pool.CreatedAt.Time) / time.Second); secs > 0 {
			return secs
		}
	}
	return r.windowSecs
}

// now reads the timer's clock so a snapshot's remaining-seconds figure and the
// ticks that follow it agree on the same time source.
func (r *Reconciler) now() time.Time {
	if r.timer.Now != nil {
		return r.timer.Now()
	}
	return time.Now()
}

func (r *Reconciler) publish() {
	r.model.UpdatedAt = time.Now()
	model := r.model
	r.mu.Lock()
	r.latest = model
	r.mu.Unlock()
	if r.publishFn != nil {
		r.publishFn(model)
	}
}
