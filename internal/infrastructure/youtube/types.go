package youtube

// Wire shapes for the liveBroadcasts and liveStreams resources. Only the
// fields this service reads or writes are declared.

type broadcastSnippet struct {
	Title              string `json:"title,omitempty"`
	Description        string `json:"description,omitempty"`
	ScheduledStartTime string `json:"scheduledStartTime,omitempty"`
}

type broadcastStatus struct {
	LifeCycleStatus string `json:"lifeCycleStatus,omitempty"`
	PrivacyStatus   string `json:"privacyStatus,omitempty"`
}

type broadcastContentDetails struct {
	EnableAutoStart bool `json:"enableAutoStart"`
	EnableAutoStop  bool `json:"enableAutoStop"`
}

type broadcastResource struct {
	ID             string                   `json:"id,omitempty"`
	Snippet        *broadcastSnippet        `json:"snippet,omitempty"`
	Status         *broadcastStatus         `json:"status,omitempty"`
	ContentDetails *broadcastContentDetails `json:"contentDetails,omitempty"`
}

type broadcastListResponse struct {
	Items []broadcastResource `json:"items"`
}

type streamSnippet struct {
	Title string `json:"title,omitempty"`
}

type streamCDN struct {
	FrameRate     string         `json:"frameRate,omitempty"`
	IngestionType string         `json:"ingestionType,omitempty"`
	Resolution    string         `json:"resolution,omitempty"`
	IngestionInfo *ingestionInfo `json:"ingestionInfo,omitempty"`
}

type ingestionInfo struct {
	IngestionAddress string `json:"ingestionAddress,omitempty"`
	StreamName       string `json:"streamName,omitempty"`
}

type streamResource struct {
	ID      string         `json:"id,omitempty"`
	Snippet *streamSnippet `json:"snippet,omitempty"`
	CDN     *streamCDN     `json:"cdn,omitempty"`
}

// apiError is the platform's error envelope.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (e *apiError) reason() string {
	if len(e.Error.Errors) > 0 {
		return e.Error.Errors[0].Reason
	}
	return ""
}
