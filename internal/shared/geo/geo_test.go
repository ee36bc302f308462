package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Kyoto (35.0116, 135.7681) to Osaka (34.6937, 135.5023) ~ 40-45 km
	d := HaversineKm(35.0116, 135.7681, 34.6937, 135.5023)
	if d < 35 || d > 50 {
		t.Fatalf("unexpected distance: %v", d)
	}

	if d := HaversineKm(10, 20, 10, 20); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}
