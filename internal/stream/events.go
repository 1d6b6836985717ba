package stream

// Kind names a server-pushed event. The sets below are the full enumeration
// the upstream emits per role; anything else on the wire is ignored by
// construction because only these names are subscribed.
type Kind string

const (
	PoolJoined     Kind = "POOL_JOINED"
	PoolDispatched Kind = "POOL_DISPATCHED"
	PoolWaiting    Kind = "POOL_WAITING"
	RideStarted    Kind = "RIDE_STARTED"
	RideCompleted  Kind = "RIDE_COMPLETED"
	RideCancelled  Kind = "RIDE_CANCELLED"
	RiderCancelled Kind = "RIDER_CANCELLED"
	PriceUpdated   Kind = "PRICE_UPDATED"
	PoolDissolved  Kind = "POOL_DISSOLVED"

	TripAssigned  Kind = "TRIP_ASSIGNED"
	TripCancelled Kind = "TRIP_CANCELLED"
)

// PassengerKinds lists the events delivered on a passenger stream.
func PassengerKinds() []Kind {
	return []Kind{
		PoolJoined, PoolDispatched, PoolWaiting, RideStarted, RideCompleted,
		RideCancelled, RiderCancelled, PriceUpdated, PoolDissolved,
	}
}

// DriverKinds lists the events delivered on a driver stream.
func DriverKinds() []Kind {
	return []Kind{TripAssigned, TripCancelled, RiderCancelled}
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Severity classifies the user-facing notification for an event kind. The
// classification depends on the kind alone; payload contents are never
// trusted for it.
func (k Kind) Severity() Severity {
	switch k {
	case RideCancelled, PoolDissolved, TripCancelled:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

var messages = map[Kind]string{
	PoolJoined:     "A new rider joined your pool",
	PoolDispatched: "Driver assigned! Your ride is confirmed",
	PoolWaiting:    "Looking for a driver",
	RideStarted:    "Your driver is on the way",
	RideCompleted:  "Ride completed, thank you",
	RideCancelled:  "Your ride was cancelled",
	RiderCancelled: "A rider left the pool",
	PriceUpdated:   "Your fare has been updated",
	PoolDissolved:  "Pool dissolved",
	TripAssigned:   "New trip assigned",
	TripCancelled:  "Trip cancelled, all riders left",
}

// Message returns the display text for the event kind, falling back to the
// raw kind name.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return string(k)
}

// Event is a server-pushed signal that the subject's state likely changed.
// Payload is opportunistically parsed JSON (or the raw text when parsing
// fails) and is only a hint for display; it is never trusted for state.
type Event struct {
	Kind    Kind
	Payload any
}
