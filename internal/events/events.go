// Package events is the cross-panel event bus. Independently mounted panels
// (player, sidebar, chapter sheet, notes drawer) publish and observe named,
// typed events through a Bus instance instead of sharing state.
package events

// Name identifies an event channel. The names are the wire contract every
// panel must honor.
type Name string

const (
	VideoIndexChange      Name = "videoIndexChange"
	VideoProgressUpdate   Name = "videoProgressUpdate"
	ChapterIndexChange    Name = "chapterIndexChange"
	ChapterProgressUpdate Name = "chapterProgressUpdate"
	BookmarkUpdate        Name = "bookmarkUpdate"
)

// Source says whether a chapter change came from playback or a click.
type Source string

const (
	SourceAuto Source = "auto"
	SourceUser Source = "user"
)

// Event is a payload carried on exactly one named channel.
type Event interface {
	EventName() Name
}

type VideoIndexChanged struct {
	VideoIndex int `json:"videoIndex"`
}

type VideoProgressUpdated struct {
	VideoID   string `json:"videoId"`
	Completed bool   `json:"completed"`
}

type ChapterIndexChanged struct {
	ChapterIndex int    `json:"chapterIndex"`
	Source       Source `json:"source"`
}

type ChapterProgressUpdated struct {
	ChapterID string `json:"chapterId"`
	Completed bool   `json:"completed"`
}

type BookmarkUpdated struct {
	VideoID    string `json:"videoId"`
	Bookmarked bool   `json:"bookmarked"`
}

func (VideoIndexChanged) EventName() Name      { return VideoIndexChange }
func (VideoProgressUpdated) EventName() Name   { return VideoProgressUpdate }
func (ChapterIndexChanged) EventName() Name    { return ChapterIndexChange }
func (ChapterProgressUpdated) EventName() Name { return ChapterProgressUpdate }
func (BookmarkUpdated) EventName() Name        { return BookmarkUpdate }
