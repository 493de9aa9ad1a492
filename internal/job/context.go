package job

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// jobContext identifies the submission a work function is running for.
type jobContext struct {
	processor  *Processor
	id         string
	generation uuid.UUID
}

func withJob(ctx context.Context, p *Processor, id string, generation uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, jobContext{
		processor:  p,
		id:         id,
		generation: generation,
	})
}

// IDFromContext returns the id of the job whose work is running with ctx.
func IDFromContext(ctx context.Context) (string, bool) {
	jc, ok := ctx.Value(contextKey{}).(jobContext)
	if !ok {
		return "", false
	}
	return jc.id, true
}

// ReportProgress replaces the progress of the job whose work is running with
// ctx. It returns false when ctx does not belong to a job, or when the job
// has been removed or superseded by a newer submission of the same id.
func ReportProgress(ctx context.Context, progress map[string]any) bool {
	jc, ok := ctx.Value(contextKey{}).(jobContext)
	if !ok {
		return false
	}

	p := jc.processor
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[jc.id]
	if !ok || rec.Generation != jc.generation {
		return false
	}
	rec.Progress = cloneProgress(progress)
	return true
}
