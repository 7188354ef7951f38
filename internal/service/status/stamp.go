package status

import "time"

const TimeLayout = time.DateTime

// Stamp appends the "<YYYY-MM-DD HH:MM:SS> UTC" line every outgoing message carries.
func Stamp(text string, at time.Time) string {
	return text + "\n" + at.UTC().Format(TimeLayout) + " UTC"
}
