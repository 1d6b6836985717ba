package rank

import (
	"math"
	"testing"

	"github.com/example/pool-dashboard/internal/models"
)

func cab(id string, lat, lng float64) models.Cab {
	return models.Cab{ID: id, CurrentLat: lat, CurrentLng: lng, Status: models.CabAvailable}
}

func TestRankFiltersByRadius(t *testing.T) {
	ref := models.Coord{Lat: 19.10, Lng: 72.85}
	candidates := []models.Cab{
		cab("near", 19.10, 72.86),
		cab("far", 19.30, 73.10),
	}
	got := Rank(ref, candidates, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 cab within radius, got %d", len(got))
	}
	if got[0].ID != "near" {
		t.Fatalf("expected near, got %s", got[0].ID)
	}
	if math.Abs(got[0].DistanceKm-1.1132) > 0.01 {
		t.Fatalf("expected ~1.11 km, got %f", got[0].DistanceKm)
	}
}

func TestRankSortsAscending(t *testing.T) {
	ref := models.Coord{Lat: 19.0, Lng: 72.8}
	candidates := []models.Cab{
		cab("c", 19.03, 72.8),
		cab("a", 19.01, 72.8),
		cab("b", 19.02, 72.8),
	}
	got := Rank(ref, candidates, 100)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	ref := models.Coord{Lat: 19.0, Lng: 72.8}
	candidates := []models.Cab{
		cab("first", 19.0, 72.81),
		cab("second", 19.0, 72.79),
	}
	got := Rank(ref, candidates, 100)
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("equal distances must keep input order, got %s,%s", got[0].ID, got[1].ID)
	}
}

func TestRankEmptyAndNoneNearby(t *testing.T) {
	ref := models.Coord{Lat: 19.0, Lng: 72.8}
	if got := Rank(ref, nil, 10); len(got) != 0 {
		t.Fatalf("expected empty for no candidates, got %d", len(got))
	}
	if got := Rank(ref, []models.Cab{cab("far", 25.0, 80.0)}, 10); len(got) != 0 {
		t.Fatalf("expected empty when none nearby, got %d", len(got))
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	ref := models.Coord{Lat: 19.0, Lng: 72.8}
	candidates := []models.Cab{
		cab("b", 19.02, 72.8),
		cab("a", 19.01, 72.8),
	}
	_ = Rank(ref, candidates, 100)
	if candidates[0].ID != "b" || candidates[1].ID != "a" {
		t.Fatal("input slice was reordered")
	}
}
