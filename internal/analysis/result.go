package analysis

import "encoding/json"

// Point is one sample of the returned spectrum
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Result is the analysis payload, stored exactly as the service returned it
type Result struct {
	Class     string  `json:"class"`
	AudioData []Point `json:"audio_data"`
	MinY      float64 `json:"min_ydata"`
	MaxY      float64 `json:"max_ydata"`
	MaxX      float64 `json:"max_xdata"`

	// number of keys present in the decoded object
	fields int
}

func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*r = Result(p)
	r.fields = len(keys)
	return nil
}

// Populated reports whether the result carries at least one field.
// An empty object {} is not populated.
func (r *Result) Populated() bool {
	if r == nil {
		return false
	}
	return r.fields > 0 || r.Class != "" || len(r.AudioData) > 0 || r.MinY != 0 || r.MaxY != 0 || r.MaxX != 0
}
