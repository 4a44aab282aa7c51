package dispatch

import "context"

type multiRecorder []Recorder

// RecordDispatch implements Recorder by fanning out to every child.
func (m multiRecorder) RecordDispatch(ctx context.Context, rec Record) {
	for _, r := range m {
		if r != nil {
			r.RecordDispatch(ctx, rec)
		}
	}
}

// MultiRecorder combines several recorders into one. Nil entries are skipped;
// with no non-nil entries the result is nil.
func MultiRecorder(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
