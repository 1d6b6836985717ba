package dashboard

import (
	"time"

	"github.com/example/pool-dashboard/internal/models"
	"github.com/example/pool-dashboard/internal/rank"
	"github.com/example/pool-dashboard/internal/stream"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// State is the reconciler's lifecycle phase.
type State string

const (
	StateIdle       State = "IDLE"
	StateLoading    State = "LOADING"
	StateReady      State = "READY"
	StateRefreshing State = "REFRESHING"
)

// CountdownView is the visible pool-window countdown. WindowSeconds is the
// total window length so consumers can render a progress fraction without
// assuming a fixed 60-second window.
type CountdownView struct {
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
	WindowSeconds    int       `json:"windowSeconds"`
}

// Notice is the user-facing notification derived from the latest stream
// event or a failed user action.
type Notice struct {
	Kind     string          `json:"kind"`
	Message  string          `json:"message"`
	Severity stream.Severity `json:"severity"`
	At       time.Time       `json:"at"`
}

// RenderModel is the complete, immutable view state published after every
// reconciliation step. Each publish replaces the previous model wholesale;
// consumers only ever read it.
type RenderModel struct {
	Role      Role   `json:"role"`
	SubjectID string `json:"subjectId,omitempty"`
	State     State  `json:"state"`

	ActiveRide  *models.Ride  `json:"activeRide,omitempty"`
	ActivePool  *models.Pool  `json:"activePool,omitempty"`
	RideHistory []models.Ride `json:"rideHistory,omitempty"`
	Riders      []models.Ride `json:"riders,omitempty"`

	PickupName string `json:"pickupName,omitempty"`
	DropName   string `json:"dropName,omitempty"`

	NearbyCabs []rank.Ranked  `json:"nearbyCabs,omitempty"`
	Countdown  *CountdownView `json:"countdown,omitempty"`
	Notice     *Notice        `json:"notice,omitempty"`

	// Error is the inline pull-failure indicator, cleared by the next
	// successful pull.
	Error string `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}
