package telegram

import (
	"fmt"

	"github.com/user/quakebot/internal/storage"
)

// eventTimeLayout is how event timestamps are rendered in notifications.
const eventTimeLayout = "2006-01-02 15:04:05"

// EarthquakeMessage builds the notification text for one event. The same
// layout is used by the notification loop and the /test command.
func EarthquakeMessage(q storage.Earthquake) string {
	return fmt.Sprintf(
		"🚨 *New earthquake!*\n"+
			"▫️ Magnitude: %.1f\n"+
			"▫️ Place: %s\n"+
			"▫️ Time: %s\n"+
			"🔗 Details: %s",
		q.Magnitude,
		q.Location,
		q.EventTime.Format(eventTimeLayout),
		q.URL,
	)
}

// StatsMessage builds the /stats reply.
func StatsMessage(st storage.Stats) string {
	return fmt.Sprintf(
		"📊 *Earthquake statistics:*\n"+
			"▫️ Total recorded: %d\n"+
			"▫️ Max magnitude: %.1f\n"+
			"▫️ Average magnitude: %.1f",
		st.Total,
		st.MaxMagnitude,
		st.AvgMagnitude,
	)
}
