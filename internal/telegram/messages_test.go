package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/user/quakebot/internal/storage"
)

func TestEarthquakeMessage(t *testing.T) {
	msg := EarthquakeMessage(storage.Earthquake{
		ID:        "us7000abcd",
		Location:  "43 km E of Almaty, Kazakhstan",
		Magnitude: 4.53,
		EventTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		URL:       "https://example.com/us7000abcd",
	})

	for _, fragment := range []string{
		"Magnitude: 4.5",
		"43 km E of Almaty, Kazakhstan",
		"2024-01-01 12:00:00",
		"https://example.com/us7000abcd",
	} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("message missing %q:\n%s", fragment, msg)
		}
	}
}

func TestStatsMessage(t *testing.T) {
	msg := StatsMessage(storage.Stats{Total: 12, MaxMagnitude: 6.1, AvgMagnitude: 3.34})

	for _, fragment := range []string{"12", "6.1", "3.3"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("stats message missing %q:\n%s", fragment, msg)
		}
	}
}
