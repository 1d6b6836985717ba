package models

import (
	"fmt"
	"strings"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Status values as the upstream defines them. Kept as plain string types so
// values the upstream adds later still flow through and render.
type RideStatus string

const (
	RidePending    RideStatus = "PENDING"
	RidePooled     RideStatus = "POOLED"
	RideConfirmed  RideStatus = "CONFIRMED"
	RideInProgress RideStatus = "IN_PROGRESS"
	RideCompleted  RideStatus = "COMPLETED"
	RideCancelled  RideStatus = "CANCELLED"
)

// Terminal reports whether the ride can no longer change.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

type PoolStatus string

const (
	PoolForming    PoolStatus = "FORMING"
	PoolConfirmed  PoolStatus = "CONFIRMED"
	PoolInProgress PoolStatus = "IN_PROGRESS"
	PoolCompleted  PoolStatus = "COMPLETED"
	PoolDissolved  PoolStatus = "DISSOLVED"
)

type CabStatus string

const (
	CabAvailable CabStatus = "AVAILABLE"
	CabAssigned  CabStatus = "ASSIGNED"
	CabOnTrip    CabStatus = "ON_TRIP"
)

// ServerTime wraps a timestamp as the upstream emits it. The upstream runs in
// UTC but serializes local-date-time strings without a zone suffix, so a bare
// timestamp is interpreted as UTC here, once, at the decode boundary.
type ServerTime struct {
	time.Time
}

var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *ServerTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range serverTimeLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t ServerTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// Ride mirrors the upstream ride response.
type Ride struct {
	ID             string     `json:"id"`
	PassengerID    string     `json:"passengerId"`
	PassengerName  string     `json:"passengerName"`
	PickupLat      float64    `json:"pickupLat"`
	PickupLng      float64    `json:"pickupLng"`
	DropLat        float64    `json:"dropLat"`
	DropLng        float64    `json:"dropLng"`
	PassengerCount int        `json:"passengerCount"`
	LuggageCount   int        `json:"luggageCount"`
	Status         RideStatus `json:"status"`
	RidePoolID     string     `json:"ridePoolId,omitempty"`
	EstimatedPrice *float64   `json:"estimatedPrice,omitempty"`
	CreatedAt      ServerTime `json:"createdAt"`
}

func (r Ride) Pickup() Coord { return Coord{Lat: r.PickupLat, Lng: r.PickupLng} }
func (r Ride) Drop() Coord   { return Coord{Lat: r.DropLat, Lng: r.DropLng} }

// Pool mirrors the upstream pool response.
type Pool struct {
	ID                   string      `json:"id"`
	CabID                string      `json:"cabId,omitempty"`
	CabLicensePlate      string      `json:"cabLicensePlate,omitempty"`
	DriverName           string      `json:"driverName,omitempty"`
	Status               PoolStatus  `json:"status"`
	TotalOccupiedSeats   int         `json:"totalOccupiedSeats"`
	TotalLuggage         int         `json:"totalLuggage"`
	RemainingSeats       int         `json:"remainingSeats"`
	TotalRouteDistanceKm float64     `json:"totalRouteDistanceKm"`
	WindowExpiresAt      *ServerTime `json:"windowExpiresAt,omitempty"`
	Riders               []Ride      `json:"riders,omitempty"`
	CreatedAt            ServerTime  `json:"createdAt"`
}

// Cab mirrors the upstream cab response. RemainingSeats and RemainingLuggage
// are only present while the cab is assigned to an active pool.
type Cab struct {
	ID               string    `json:"id"`
	LicensePlate     string    `json:"licensePlate"`
	DriverName       string    `json:"driverName"`
	TotalSeats       int       `json:"totalSeats"`
	LuggageCapacity  int       `json:"luggageCapacity"`
	CurrentLat       float64   `json:"currentLat"`
	CurrentLng       float64   `json:"currentLng"`
	Status           CabStatus `json:"status"`
	RemainingSeats   *int      `json:"remainingSeats,omitempty"`
	RemainingLuggage *int      `json:"remainingLuggage,omitempty"`
	PoolID           string    `json:"poolId,omitempty"`
}

func (c Cab) Location() Coord { return Coord{Lat: c.CurrentLat, Lng: c.CurrentLng} }

// PassengerDashboard is one full pull of a passenger's dashboard state.
type PassengerDashboard struct {
	ActiveRide  *Ride  `json:"activeRide"`
	ActivePool  *Pool  `json:"activePool"`
	RideHistory []Ride `json:"rideHistory"`
}

// DriverDashboard is one full pull of a driver's assigned-trip state.
type DriverDashboard struct {
	ActivePool *Pool  `json:"activePool"`
	Riders     []Ride `json:"riders"`
}
