package dto

// JobResponse is one unit of work served to the Executor on poll.
type JobResponse struct {
	ID             string            `json:"id"`
	Reference      string            `json:"reference"`
	JobType        string            `json:"jobType"`
	XMLContent     string            `json:"xmlContent"`
	TargetFilename string            `json:"targetFilename"`
	FileParams     map[string]string `json:"fileParams,omitempty"`
}

type IngestResponse struct {
	QuoteID   string  `json:"quote_id"`
	Reference string  `json:"reference"`
	ItemCount int     `json:"item_count"`
	Total     float64 `json:"total"`
}

type UploadResponse struct {
	QuoteID  string `json:"quote_id"`
	FilePath string `json:"file_path"`
}

type PrepareDuplicateRequest struct {
	SourceReference string `json:"source_reference" binding:"required"`
}
