package jobs

import "context"

// NotificationSink is what the queued notifier finally writes to.
type NotificationSink interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

// Notifier moves notification writes onto the runner so a slow or failing
// notification store never delays a section submission.
type Notifier struct {
	Runner *Runner
	Sink   NotificationSink
}

func NewNotifier(runner *Runner, sink NotificationSink) *Notifier {
	return &Notifier{Runner: runner, Sink: sink}
}

// Create queues the write and reports success once it is queued.
func (n *Notifier) Create(_ context.Context, userID, ntype, title, body string) error {
	n.Runner.Enqueue(JobNotify, func(ctx context.Context) error {
		return n.Sink.Create(ctx, userID, ntype, title, body)
	})
	return nil
}
