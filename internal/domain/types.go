package domain

import "fmt"

// TitleVersion identifies what content to fetch and which build's
// compatibility digest to send.
type TitleVersion struct {
	TitleID uint64
	BuildID uint64
}

func (t TitleVersion) String() string {
	return fmt.Sprintf("%016X (build %016X)", t.TitleID, t.BuildID)
}

// EventStatus holds the server-announced messages for a single title.
// Events preserve server order.
type EventStatus struct {
	Header *string
	Footer *string
	Events []string
}

// CompletionCallback receives the outcome of a background synchronization.
// It is invoked exactly once per request and never concurrently with
// another completion.
type CompletionCallback func(success bool)

// ErrorDisplay is the user-facing error surface. Only actionable download
// failures (outdated client, incompatible build) are shown through it.
type ErrorDisplay interface {
	ShowError(message, detail string)
}
