package generation

// Source tags where a piece of text came from.
type Source string

// Source values.
const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
	SourceAzure     Source = "azure"
	SourceOpenAI    Source = "openai"
	SourceNone      Source = "none"
)

// Result is generated text together with its source and, when a remote
// attempt failed, the failure detail.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Err    string `json:"error,omitempty"`
}

// ReasonsResult holds one reason per recommendation, in order.
type ReasonsResult struct {
	Reasons []string `json:"reasons"`
	Source  Source   `json:"source"`
	Err     string   `json:"error,omitempty"`
}
