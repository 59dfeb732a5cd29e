package quiz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/statquiz/internal/quiz"
)

func TestSequencer_NewerRequestWins(t *testing.T) {
	var seq quiz.Sequencer

	ctx1, gen1, cancel1 := seq.Begin(context.Background())
	defer cancel1()
	ctx2, gen2, cancel2 := seq.Begin(context.Background())
	defer cancel2()

	if !errors.Is(ctx1.Err(), context.Canceled) {
		t.Errorf("first context err = %v, want Canceled", ctx1.Err())
	}
	if ctx2.Err() != nil {
		t.Errorf("second context err = %v, want nil", ctx2.Err())
	}
	if seq.Current(gen1) {
		t.Error("stale generation reported current")
	}
	if !seq.Current(gen2) {
		t.Error("latest generation not current")
	}
}

func TestSequencer_Invalidate(t *testing.T) {
	var seq quiz.Sequencer

	ctx, gen, cancel := seq.Begin(context.Background())
	defer cancel()
	seq.Invalidate()

	if seq.Current(gen) {
		t.Error("generation current after Invalidate")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled by Invalidate")
	}
}
