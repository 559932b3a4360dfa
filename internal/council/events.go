package council

// EventType names a streaming event.
type EventType string

// Streaming events in emission order. EventError is terminal and replaces
// whatever events would have followed.
const (
	EventStage1Start    EventType = "stage1_start"
	EventStage1Complete EventType = "stage1_complete"
	EventStage2Start    EventType = "stage2_start"
	EventStage2Complete EventType = "stage2_complete"
	EventStage3Start    EventType = "stage3_start"
	EventStage3Complete EventType = "stage3_complete"
	EventTitleComplete  EventType = "title_complete"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// Event is one streaming event. It marshals to the JSON object sent to
// clients, e.g. {"type":"stage1_complete","data":[...]}.
type Event struct {
	Type     EventType       `json:"type"`
	Data     any             `json:"data,omitempty"`
	Metadata *Stage2Metadata `json:"metadata,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Stage2Metadata rides along with stage2_complete.
type Stage2Metadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// TitleData is the payload of title_complete.
type TitleData struct {
	Title string `json:"title"`
}

// Terminal reports whether no event can follow e.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
