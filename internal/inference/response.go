package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tphakala/wildwatch-go/internal/detection"
)

// response is the service envelope. Older deployments answer with a bare candidate
// object or a bare array instead, which ParseResponse also accepts.
type response struct {
	Detections []detection.Candidate `json:"detections"`
	Error      string                `json:"error"`

	// single-candidate form
	detection.Candidate
}

// ParseResponse decodes an inference response body into candidates.
// An envelope carrying only an error message is returned as an error.
func ParseResponse(body []byte) ([]detection.Candidate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	if body[0] == '[' {
		var list []detection.Candidate
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
		return dropUnnamed(list), nil
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	switch {
	case len(r.Detections) > 0:
		return dropUnnamed(r.Detections), nil
	case r.Error != "":
		return nil, fmt.Errorf("inference service error: %s", r.Error)
	case r.Species != "":
		return []detection.Candidate{r.Candidate}, nil
	default:
		return nil, nil
	}
}

func dropUnnamed(list []detection.Candidate) []detection.Candidate {
	out := list[:0:0]
	for _, c := range list {
		if c.Species != "" {
			out = append(out, c)
		}
	}
	return out
}
