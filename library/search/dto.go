package search

import (
	"encoding/json"
)

// Placeholders substituted when a hit lacks the corresponding field.
const (
	PlaceholderTitle   = "No Title"
	PlaceholderURL     = "No URL"
	PlaceholderSummary = "No Summary"
)

// Result is one normalized news hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// Outcome is the descriptor handed to workers and tools: either a list of
// results or an error message, never both.
//
// The JSON form is the bare result array on success and {"error": "..."} on failure.
type Outcome struct {
	Results []Result
	Error   string
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// MarshalJSON renders the outcome in its descriptor form.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Failed() {
		return json.Marshal(map[string]string{"error": o.Error})
	}

	results := o.Results
	if results == nil {
		results = []Result{}
	}
	return json.Marshal(results)
}

// UnmarshalJSON accepts either descriptor form.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var results []Result
	if err := json.Unmarshal(data, &results); err == nil {
		o.Results, o.Error = results, ""
		return nil
	}

	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &failure); err != nil {
		return err
	}
	o.Results, o.Error = nil, failure.Error
	return nil
}

// String returns the JSON descriptor, which is what a worker sees as tool output.
func (o Outcome) String() string {
	b, err := json.Marshal(o)
	if err != nil {
		return `{"error":"` + KindInvalidJSON.message() + `"}`
	}
	return string(b)
}
