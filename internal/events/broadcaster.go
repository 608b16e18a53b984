package events

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names one domain occurrence a subscriber can receive.
type Type string

const (
	TypeDriveInserted       Type = "drive_inserted"
	TypeDriveEjected        Type = "drive_ejected"
	TypeJobCreated          Type = "job_created"
	TypeJobStateChanged     Type = "job_state_changed"
	TypeJobProgress         Type = "job_progress"
	TypeTitlesDiscovered    Type = "titles_discovered"
	TypeTitleStateChanged   Type = "title_state_changed"
	TypeTitleMatched        Type = "title_matched"
	TypeSubtitleProgress    Type = "subtitle_event"
	TypeJobFailed           Type = "job_failed"
	TypeJobCompleted        Type = "job_completed"
)

// Event is one broadcast occurrence. Fields that don't apply to a given
// Type are left at their zero value and omitted by JSON marshalling on the
// transport side (internal/api), per the field-omission rule.
type Event struct {
	Type        Type           `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	JobID       int64          `json:"job_id,omitempty"`
	TitleID     int64          `json:"title_id,omitempty"`
	DriveID     string         `json:"drive_id,omitempty"`
	VolumeLabel string         `json:"volume_label,omitempty"`
	State       string         `json:"state,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Progress    int            `json:"progress_pct,omitempty"`
	Message     string         `json:"message,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Subscription is a handle returned by Subscribe. Cancel stops delivery and
// releases the subscriber's channel.
type Subscription struct {
	ID string
	C  <-chan Event
}

const subscriberBuffer = 64

// Broadcaster delivers events to every active subscriber, best-effort.
// A subscriber that can't keep up has events dropped for it rather than
// blocking the publisher; this is a live status feed, not a durable log.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// New constructs an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a new listener and returns its handle. Cancel must be
// called to release resources once the subscriber disconnects.
func (b *Broadcaster) Subscribe() Subscription {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return Subscription{ID: id, C: ch}
}

// Cancel removes a subscriber and closes its channel.
func (b *Broadcaster) Cancel(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// publish delivers ev to every subscriber without blocking on a slow one.
func (b *Broadcaster) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func cleanReason(reason string) string {
	return strings.TrimSpace(reason)
}

// BroadcastDriveInserted announces a disc found in a drive.
func (b *Broadcaster) BroadcastDriveInserted(driveID, volumeLabel string) {
	b.publish(Event{Type: TypeDriveInserted, DriveID: driveID, VolumeLabel: volumeLabel})
}

// BroadcastDriveEjected announces a drive tray opening or a disc removal.
func (b *Broadcaster) BroadcastDriveEjected(driveID string) {
	b.publish(Event{Type: TypeDriveEjected, DriveID: driveID})
}

// BroadcastJobCreated announces a new job row for a freshly inserted disc.
func (b *Broadcaster) BroadcastJobCreated(jobID int64, driveID string) {
	b.publish(Event{Type: TypeJobCreated, JobID: jobID, DriveID: driveID})
}

// BroadcastJobStateChanged announces a job state machine transition.
func (b *Broadcaster) BroadcastJobStateChanged(jobID int64, state, reason string) {
	b.publish(Event{Type: TypeJobStateChanged, JobID: jobID, State: state, Reason: cleanReason(reason)})
}

// BroadcastJobProgress announces a rip/match/organize progress tick.
func (b *Broadcaster) BroadcastJobProgress(jobID int64, pct int, message string) {
	b.publish(Event{Type: TypeJobProgress, JobID: jobID, Progress: pct, Message: message})
}

// BroadcastTitlesDiscovered announces the analyst finishing a disc scan,
// carrying the classification alongside the title count. detectedSeason is
// included only when the analyst actually parsed one (field-omission rule).
func (b *Broadcaster) BroadcastTitlesDiscovered(jobID int64, count int, contentType, detectedTitle string, detectedSeason *int) {
	extra := map[string]any{"count": count, "content_type": contentType}
	if detectedTitle != "" {
		extra["detected_title"] = detectedTitle
	}
	if detectedSeason != nil {
		extra["detected_season"] = *detectedSeason
	}
	b.publish(Event{Type: TypeTitlesDiscovered, JobID: jobID, Extra: extra})
}

// BroadcastTitleStateChanged announces a title state machine transition.
func (b *Broadcaster) BroadcastTitleStateChanged(jobID, titleID int64, state string) {
	b.publish(Event{Type: TypeTitleStateChanged, JobID: jobID, TitleID: titleID, State: state})
}

// BroadcastTitleMatched announces the matcher resolving a title to an episode or movie.
func (b *Broadcaster) BroadcastTitleMatched(jobID, titleID int64, episode string, confidence float64) {
	b.publish(Event{
		Type:    TypeTitleMatched,
		JobID:   jobID,
		TitleID: titleID,
		Extra:   map[string]any{"episode": episode, "confidence": confidence},
	})
}

// BroadcastSubtitleProgress announces the state of a job's reference
// subtitle corpus: how many episode subtitles are on hand, how many the
// season canonically has, and how many fetches failed.
func (b *Broadcaster) BroadcastSubtitleProgress(jobID int64, status string, downloaded, total, failed int) {
	b.publish(Event{
		Type:  TypeSubtitleProgress,
		JobID: jobID,
		State: status,
		Extra: map[string]any{"downloaded": downloaded, "total": total, "failed_count": failed},
	})
}

// BroadcastJobFailed announces a job entering the FAILED terminal state.
func (b *Broadcaster) BroadcastJobFailed(jobID int64, reason string) {
	b.publish(Event{Type: TypeJobFailed, JobID: jobID, Reason: cleanReason(reason)})
}

// BroadcastJobCompleted announces a job entering the COMPLETED terminal state.
func (b *Broadcaster) BroadcastJobCompleted(jobID int64) {
	b.publish(Event{Type: TypeJobCompleted, JobID: jobID})
}
