package validate

import (
	"fmt"
	"math"
)

// Text field length limits shared by the API and the playback core.
const (
	MaxNoteBodyLength     = 5000
	MaxVideoIDLength      = 64
	MaxCourseIDLength     = 64
	MaxChapterTitleLength = 300
)

// MaxTimestampSeconds bounds any stored playback offset (24 hours).
const MaxTimestampSeconds = 24 * 60 * 60

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func checkRequired(value string, max int, field string) string {
	if value == "" {
		return fmt.Sprintf("%s is required", field)
	}
	return checkLen(value, max, field)
}

func NoteBody(s string) string     { return checkRequired(s, MaxNoteBodyLength, "note") }
func VideoID(s string) string      { return checkRequired(s, MaxVideoIDLength, "video id") }
func CourseID(s string) string     { return checkRequired(s, MaxCourseIDLength, "course id") }
func ChapterTitle(s string) string { return checkLen(s, MaxChapterTitleLength, "chapter title") }

// Timestamp checks a playback offset in seconds.
func Timestamp(seconds float64, field string) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Sprintf("%s must be a finite number", field)
	}
	if seconds < 0 {
		return fmt.Sprintf("%s must not be negative", field)
	}
	if seconds > MaxTimestampSeconds {
		return fmt.Sprintf("%s must be %d seconds or less", field, MaxTimestampSeconds)
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"noteBody":     MaxNoteBodyLength,
		"videoId":      MaxVideoIDLength,
		"courseId":     MaxCourseIDLength,
		"chapterTitle": MaxChapterTitleLength,
		"timestamp":    MaxTimestampSeconds,
	}
}
