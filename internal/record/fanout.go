package record

import (
	"context"
	"errors"

	"github.com/quizarena/quiz-arena/internal/match"
)

// Fanout writes a result to every attached recorder. One sink failing does
// not stop the others; the joined error is returned for logging.
type Fanout []match.Recorder

func (f Fanout) SaveResult(ctx context.Context, res *match.Result) error {
	var errs []error
	for _, r := range f {
		if r == nil {
			continue
		}
		if err := r.SaveResult(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
