package streaming

import "context"

// Message is one element of a streamed response the caller can inspect for
// progress reporting.
type Message struct {
	Payload         interface{}
	Content         string
	ProgressPercent float64
}

// Factory opens a fresh stream of messages onto ch, closing it when done.
// It must respect ctx cancellation.
type Factory func(ctx context.Context, ch chan<- Message) error

// ResumeFactory opens a stream resuming after fromSequence onto ch, closing
// it when done.
type ResumeFactory func(ctx context.Context, fromSequence int, ch chan<- Message) error

// ResumableStream re-establishes stream_factory (or resume_factory, if a
// checkpoint exists) and checkpoints progress as messages arrive, so a
// caller that reconnects after a transport failure resumes instead of
// restarting.
type ResumableStream struct {
	manager       *CheckpointManager
	factory       Factory
	resumeFactory ResumeFactory
	streamID      string
	sequence      int
}

func NewResumableStream(streamID string, manager *CheckpointManager, factory Factory, resumeFactory ResumeFactory) *ResumableStream {
	return &ResumableStream{
		streamID:      streamID,
		manager:       manager,
		factory:       factory,
		resumeFactory: resumeFactory,
	}
}

// Run drives the stream end to end, invoking onMessage for every message
// and checkpointing progress as it goes. It returns once the underlying
// factory's channel closes, or ctx is done.
func (r *ResumableStream) Run(ctx context.Context, onMessage func(Message)) error {
	resumePoint := r.manager.GetResumePoint(r.streamID)
	if resumePoint == nil || r.resumeFactory == nil {
		resumePoint = nil
		r.manager.StartStream(r.streamID)
	} else {
		r.sequence = resumePoint.LastSequence
	}

	ch := make(chan Message)
	errCh := make(chan error, 1)

	go func() {
		if resumePoint != nil {
			errCh <- r.resumeFactory(ctx, resumePoint.LastSequence, ch)
			return
		}
		errCh <- r.factory(ctx, ch)
	}()

	for {
		select {
		case <-ctx.Done():
			r.manager.FailStream(r.streamID, ctx.Err().Error())
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				if err := <-errCh; err != nil {
					r.manager.FailStream(r.streamID, err.Error())
					return err
				}
				r.manager.CompleteStream(r.streamID)
				return nil
			}
			r.sequence++
			r.manager.Checkpoint(r.streamID, r.sequence, msg.Content, msg.ProgressPercent, nil)
			onMessage(msg)
		}
	}
}
