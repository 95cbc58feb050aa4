package worker

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/model"
)

// Sink writes match results as newline-delimited JSON. It is shared by all
// workers of a dry run.
type Sink struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{enc: json.NewEncoder(w)}
}

// Write appends one result.
func (s *Sink) Write(r model.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		return eris.Wrapf(err, "worker: write result for %s", r.CanonicalID)
	}
	s.n++
	return nil
}

// Count returns the number of results written.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
