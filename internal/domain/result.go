package domain

// DownloadResult classifies the outcome of one conditional download.
type DownloadResult int

const (
	// DownloadSuccess means the payload was delivered or the cache is
	// already current (HTTP 304).
	DownloadSuccess DownloadResult = iota

	// DownloadNoResponse means the server could not be reached.
	DownloadNoResponse

	// DownloadGeneralWebError covers any unexpected HTTP status.
	DownloadGeneralWebError

	// DownloadNoMatchTitleID means the server has no content configured
	// for this title (HTTP 404).
	DownloadNoMatchTitleID

	// DownloadNoMatchBuildID means this build is blacklisted or
	// unsupported (HTTP 406).
	DownloadNoMatchBuildID

	// DownloadInvalidContentType means the response content type did not
	// match the endpoint's expected media type.
	DownloadInvalidContentType

	// DownloadGeneralFSError means persisting the payload to the cache
	// failed.
	DownloadGeneralFSError

	// DownloadBadClientVersion means the server rejected the client
	// version (HTTP 301).
	DownloadBadClientVersion
)

func (r DownloadResult) String() string {
	switch r {
	case DownloadSuccess:
		return "success"
	case DownloadNoResponse:
		return "no response"
	case DownloadGeneralWebError:
		return "general web error"
	case DownloadNoMatchTitleID:
		return "no content for title"
	case DownloadNoMatchBuildID:
		return "build not supported"
	case DownloadInvalidContentType:
		return "invalid content type"
	case DownloadGeneralFSError:
		return "general filesystem error"
	case DownloadBadClientVersion:
		return "bad client version"
	default:
		return "unknown"
	}
}

// Message returns the long, user-readable explanation for a result.
func (r DownloadResult) Message() string {
	switch r {
	case DownloadSuccess:
		return "The download completed successfully."
	case DownloadNoResponse:
		return "There was no response from the server."
	case DownloadGeneralWebError:
		return "There was a general web error code returned from the server."
	case DownloadNoMatchTitleID:
		return "The current title does not have any content configured on the server."
	case DownloadNoMatchBuildID:
		return "The current build of the title is marked as incompatible with the content distribution. Try upgrading or downgrading the title."
	case DownloadInvalidContentType:
		return "The content type of the web response was invalid."
	case DownloadGeneralFSError:
		return "There was a general filesystem error while saving the downloaded file."
	case DownloadBadClientVersion:
		return "The server is either too new or too old to serve the request. Try using the latest release of the client."
	default:
		return "An unknown error occurred."
	}
}

// UserVisible reports whether the result should be surfaced through the
// error display. Transient and local failures are absorbed; only
// actionable mismatches are shown.
func (r DownloadResult) UserVisible() bool {
	switch r {
	case DownloadBadClientVersion, DownloadNoMatchBuildID:
		return true
	default:
		return false
	}
}

// InvalidatesCache reports whether a failed download should delete the
// stale cache file. The server has signaled this title or build will
// never be served, so a cached payload could only mislead a future
// digest check.
func (r DownloadResult) InvalidatesCache() bool {
	switch r {
	case DownloadNoMatchTitleID, DownloadNoMatchBuildID:
		return true
	default:
		return false
	}
}

// StatusResult classifies the outcome of a status/events fetch.
type StatusResult int

const (
	StatusSuccess StatusResult = iota
	StatusOffline
	StatusBadClientVersion
	StatusParseError
)

func (r StatusResult) String() string {
	switch r {
	case StatusSuccess:
		return "success"
	case StatusOffline:
		return "offline"
	case StatusBadClientVersion:
		return "bad client version"
	case StatusParseError:
		return "parse error"
	default:
		return "unknown"
	}
}
