package model

// TaskState represents the stage a fetch task has reached
type TaskState string

const (
	// TaskStateIdle means nothing has happened yet
	TaskStateIdle TaskState = "idle"

	// TaskStateValidating means the inbound text is being checked
	TaskStateValidating TaskState = "validating"

	// TaskStateAdmitting means cooldown, membership and single-flight checks are running
	TaskStateAdmitting TaskState = "admitting"

	// TaskStateDownloading means the extraction engine is fetching the media
	TaskStateDownloading TaskState = "downloading"

	// TaskStateCompressing means an oversized file is being re-encoded before upload
	TaskStateCompressing TaskState = "compressing"

	// TaskStateUploading means the file is being sent to the chat
	TaskStateUploading TaskState = "uploading"

	// TaskStateCleaning means status messages are being removed
	TaskStateCleaning TaskState = "cleaning"

	// TaskStateDone means the video was delivered
	TaskStateDone TaskState = "done"

	// TaskStateFailed means the task ended without delivering a video
	TaskStateFailed TaskState = "failed"
)

// String returns the string representation of TaskState
func (s TaskState) String() string {
	return string(s)
}

// IsActive returns true while the task holds resources (registry slot, temp files)
func (s TaskState) IsActive() bool {
	switch s {
	case TaskStateDownloading, TaskStateCompressing, TaskStateUploading, TaskStateCleaning:
		return true
	}
	return false
}

// IsFinished returns true if the task reached a terminal state
func (s TaskState) IsFinished() bool {
	return s == TaskStateDone || s == TaskStateFailed
}

// Phase is the stage reported by the extraction engine's progress callback
type Phase string

const (
	PhaseDownloading    Phase = "downloading"
	PhaseFinished       Phase = "finished"
	PhasePostProcessing Phase = "post_processing"
	PhaseOther          Phase = "other"
)

// MemberStatus mirrors the Bot API chat member status
type MemberStatus string

const (
	MemberCreator       MemberStatus = "creator"
	MemberAdministrator MemberStatus = "administrator"
	MemberMember        MemberStatus = "member"
	MemberRestricted    MemberStatus = "restricted"
	MemberLeft          MemberStatus = "left"
	MemberKicked        MemberStatus = "kicked"
)

// Active reports whether the status satisfies a channel membership requirement.
// Left, banned (kicked) and restricted users do not.
func (m MemberStatus) Active() bool {
	switch m {
	case MemberLeft, MemberKicked, MemberRestricted, "":
		return false
	}
	return true
}
