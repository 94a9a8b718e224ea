package domain

// JobType identifies the action the Executor must perform for one quote.
type JobType string

const (
	JobTypeCreate    JobType = "CREATE"
	JobTypeRevise    JobType = "REVISE"
	JobTypeDuplicate JobType = "DUPLICATE"
	JobTypeReimport  JobType = "REIMPORT"
)

// JobDescriptor is the unit of work handed to the Executor on a poll.
// It is built fresh on every claim and never persisted.
type JobDescriptor struct {
	QuoteID        string            `json:"id"`
	Reference      string            `json:"reference"`
	JobType        JobType           `json:"jobType"`
	XMLPayload     string            `json:"xmlContent"`
	TargetFilename string            `json:"targetFilename"`
	FileParams     map[string]string `json:"fileParams,omitempty"`
}
