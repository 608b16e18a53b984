package store

import "time"

// JobState is one of the eight states of the job state machine.
type JobState string

const (
	JobIdle          JobState = "idle"
	JobIdentifying   JobState = "identifying"
	JobReviewNeeded  JobState = "review_needed"
	JobRipping       JobState = "ripping"
	JobMatching      JobState = "matching"
	JobOrganizing    JobState = "organizing"
	JobCompleted     JobState = "completed"
	JobFailed        JobState = "failed"
)

// ContentType classifies a disc's content.
type ContentType string

const (
	ContentUnknown ContentType = "UNKNOWN"
	ContentTV      ContentType = "TV"
	ContentMovie   ContentType = "MOVIE"
)

// TitleState is one of the title-level states.
type TitleState string

const (
	TitlePending  TitleState = "pending"
	TitleRipping  TitleState = "ripping"
	TitleMatching TitleState = "matching"
	TitleMatched  TitleState = "matched"
	TitleReview   TitleState = "review"
	TitleFailed   TitleState = "failed"
	TitleComplete TitleState = "completed"
)

// ConflictResolution is a per-title organizer conflict policy.
type ConflictResolution string

const (
	ConflictAsk       ConflictResolution = "ask"
	ConflictOverwrite ConflictResolution = "overwrite"
	ConflictRename    ConflictResolution = "rename"
	ConflictSkip      ConflictResolution = "skip"
)

// Job represents one disc insertion.
type Job struct {
	ID             int64
	DriveID        string
	VolumeLabel    string
	ContentType    ContentType
	DetectedTitle  string
	DetectedSeason *int
	DiscNumber     int
	StagingPath    string
	State          JobState
	ProgressPct    int
	ProgressSpeed  string
	ProgressETA    int
	CurrentTitle   int
	TotalTitles    int
	SubDownloaded  int
	SubTotal       int
	SubFailed      int
	ErrorMessage   string
	ReviewReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Terminal reports whether the job has reached a state with no outgoing
// transitions.
func (j Job) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}

// MatchDetail is the structured record behind Title.MatchDetails.
type MatchDetail struct {
	VoteCount    int     `json:"vote_count"`
	Score        float64 `json:"score"`
	FileCoverage float64 `json:"file_coverage"`
	Candidates   []MatchCandidate `json:"candidates,omitempty"`
}

// MatchCandidate is one scored episode candidate considered for a title.
type MatchCandidate struct {
	EpisodeCode  string  `json:"episode_code"`
	VoteCount    int     `json:"vote_count"`
	Score        float64 `json:"score"`
	FileCoverage float64 `json:"file_coverage"`
}

// Title represents one selectable track on a disc.
type Title struct {
	ID              int64
	JobID           int64
	TitleIndex      int
	DurationSeconds int
	ExpectedSize    int64
	ActualSize      int64
	ChapterCount    int
	IsSelected      bool
	RippedPath      string
	OutputFilename  string
	Resolution      string
	Edition         string
	State           TitleState
	MatchedEpisode  string
	MatchConfidence float64
	MatchDetails    *MatchDetail
	ConflictChoice  ConflictResolution
	OrganizedFrom   string
	OrganizedTo     string
	IsExtra         bool
	Skipped         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
