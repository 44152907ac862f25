package editor

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

// Submission is a backend call in flight. It cannot be cancelled; callers
// may wait for it or ignore it.
type Submission struct {
	ID       string
	Op       string
	SampleID string

	done chan struct{}
	ack  *structpb.Struct
	err  error
}

func newSubmission(op, sampleID string) *Submission {
	return &Submission{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Op:       op,
		SampleID: sampleID,
		done:     make(chan struct{}),
	}
}

func (s *Submission) complete(ack *structpb.Struct, err error) {
	s.ack = ack
	s.err = err
	close(s.done)
}

// Done is closed once the backend has answered or the call failed.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the submission completes and returns the backend's
// acknowledgement. A ctx that ends first only stops the wait.
func (s *Submission) Wait(ctx context.Context) (*structpb.Struct, error) {
	select {
	case <-s.done:
		return s.ack, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the outcome of a completed submission, or nil while it is
// still in flight.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
