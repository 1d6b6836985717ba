// Package gazetteer resolves raw coordinates to named Mumbai locations for
// display. The upstream only ever deals in raw lat/lng.
package gazetteer

import (
	"fmt"

	"github.com/example/pool-dashboard/internal/models"
)

type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zone string  `json:"zone"`
}

var locations = []Location{
	{"Mumbai Airport - Terminal 2 (International)", 19.0896, 72.8656, "Airport"},
	{"Mumbai Airport - Terminal 1 (Domestic)", 19.0990, 72.8740, "Airport"},
	{"Airport - Departure Drop-off", 19.0905, 72.8665, "Airport"},
	{"Airport - Arrival Pickup Zone", 19.0885, 72.8645, "Airport"},

	{"Andheri Station (West)", 19.1197, 72.8464, "Western Suburbs"},
	{"Andheri Station (East)", 19.1190, 72.8530, "Western Suburbs"},
	{"Andheri - Lokhandwala Complex", 19.1380, 72.8270, "Western Suburbs"},
	{"Vile Parle Station", 19.1010, 72.8440, "Western Suburbs"},
	{"Santacruz Station", 19.0840, 72.8410, "Western Suburbs"},
	{"Bandra Station", 19.0544, 72.8403, "Western Suburbs"},
	{"Bandra - Bandstand", 19.0425, 72.8190, "Western Suburbs"},
	{"Bandra-Worli Sea Link (Bandra End)", 19.0460, 72.8180, "Western Suburbs"},
	{"Goregaon Station", 19.1663, 72.8490, "Western Suburbs"},
	{"Goregaon - Oberoi Mall", 19.1755, 72.8562, "Western Suburbs"},
	{"Malad Station", 19.1866, 72.8484, "Western Suburbs"},
	{"Borivali Station", 19.2300, 72.8567, "Western Suburbs"},
	{"Jogeshwari Station", 19.1365, 72.8490, "Western Suburbs"},
	{"Juhu Beach", 19.0948, 72.8267, "Western Suburbs"},

	{"CST (Chhatrapati Shivaji Terminus)", 18.9398, 72.8354, "South Mumbai"},
	{"Churchgate Station", 18.9352, 72.8274, "South Mumbai"},
	{"Marine Drive", 18.9442, 72.8234, "South Mumbai"},
	{"Gateway of India", 18.9220, 72.8347, "South Mumbai"},
	{"Nariman Point", 18.9257, 72.8242, "South Mumbai"},
	{"Dadar Station", 19.0178, 72.8448, "South Mumbai"},
	{"Lower Parel", 19.0048, 72.8310, "South Mumbai"},
	{"Worli", 19.0160, 72.8150, "South Mumbai"},

	{"BKC (Bandra-Kurla Complex)", 19.0668, 72.8712, "Business Hub"},
	{"Powai - Hiranandani Gardens", 19.1188, 72.9083, "Business Hub"},
	{"SEEPZ - Andheri East", 19.1248, 72.8720, "Business Hub"},
	{"Mindspace - Malad West", 19.1878, 72.8366, "Business Hub"},

	{"Panvel Station", 18.9935, 73.1139, "Navi Mumbai"},
	{"Vashi - Inorbit Mall", 19.0635, 72.9988, "Navi Mumbai"},
	{"Nerul Station", 19.0341, 73.0157, "Navi Mumbai"},

	{"The Lalit - Airport", 19.0940, 72.8575, "Hotels"},
	{"ITC Maratha - Andheri East", 19.1075, 72.8685, "Hotels"},
	{"Taj Lands End - Bandra", 19.0435, 72.8196, "Hotels"},
	{"Trident - BKC", 19.0641, 72.8685, "Hotels"},
	{"Taj Mahal Palace - Colaba", 18.9217, 72.8332, "Hotels"},
}

// maxMatchSqDeg bounds name resolution to roughly one kilometer
// (0.01 degrees squared).
const maxMatchSqDeg = 0.0001

// Locations returns the full named-location table.
func Locations() []Location {
	out := make([]Location, len(locations))
	copy(out, locations)
	return out
}

// Resolve returns the name of the closest known location, or the raw
// coordinates formatted for display when nothing is within range.
func Resolve(c models.Coord) string {
	best := -1
	bestDist := maxMatchSqDeg
	for i, loc := range locations {
		dLat := loc.Lat - c.Lat
		dLng := loc.Lng - c.Lng
		d := dLat*dLat + dLng*dLng
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best >= 0 {
		return locations[best].Name
	}
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lng)
}
