package rank

import (
	"math"
	"sort"

	"github.com/example/pool-dashboard/internal/models"
)

// KmPerDegree converts a planar degree delta to kilometers. Good enough for
// metropolitan-scale filtering; not a great-circle computation, so callers
// must not rely on precision beyond that.
const KmPerDegree = 111.32

// Ranked is a candidate cab augmented with its computed distance from the
// reference point.
type Ranked struct {
	models.Cab
	DistanceKm float64 `json:"distanceKm"`
}

// DistanceKm returns the approximate planar distance between two coordinates.
func DistanceKm(a, b models.Coord) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * KmPerDegree
}

// Rank filters candidates to those within radiusKm of ref and returns them
// sorted by ascending distance. Ties keep input order. The input slice is
// never mutated.
func Rank(ref models.Coord, candidates []models.Cab, radiusKm float64) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		d := DistanceKm(ref, c.Location())
		if d > radiusKm {
			continue
		}
		out = append(out, Ranked{Cab: c, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
