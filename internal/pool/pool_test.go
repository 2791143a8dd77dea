package pool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/sentiment/internal/engine"
	"github.com/crimson-sun/sentiment/internal/engine/classifier"
	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
	"github.com/crimson-sun/sentiment/internal/engine/testdata"
	"github.com/crimson-sun/sentiment/internal/model"
)

const testModel = "SentimentAnalysisModel"

var trainOpts = engine.Options{
	Featurizer: featurizer.Options{MinCount: 1},
	Classifier: classifier.Options{L2: 1e-3, MaxIterations: 200},
}

// trainModel fits the embedded corpus; flipped inverts every label so the
// resulting model disagrees with the normal one.
func trainModel(t *testing.T, flipped bool) *engine.Model {
	t.Helper()
	examples := testdata.MustCorpus()
	if flipped {
		for i := range examples {
			examples[i].Label = !examples[i].Label
		}
	}
	m, _, err := engine.Train(examples, trainOpts)
	require.NoError(t, err)
	return m
}

func writeArtifact(t *testing.T, m *engine.Model) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gz")
	require.NoError(t, m.SaveFile(path))
	return path
}

func newPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()
	p, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPredict(t *testing.T) {
	m := trainModel(t, false)
	p := newPool(t, WithSize(2))
	require.False(t, p.Ready())
	require.NoError(t, p.Register(context.Background(), testModel, writeArtifact(t, m)))
	require.True(t, p.Ready())
	assert.Equal(t, []string{testModel}, p.Models())

	in := model.Input{Text: "I love this spaghetti."}
	got, err := p.Predict(context.Background(), testModel, in)
	require.NoError(t, err)
	assert.Equal(t, m.Predict(in), got)
	assert.True(t, got.Label)
}

func TestPredict_UnknownModel(t *testing.T) {
	p := newPool(t)
	_, err := p.Predict(context.Background(), "missing", model.Input{Text: "hi"})
	assert.True(t, errors.Is(err, ErrModelNotFound))

	_, err = p.PredictBatch(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrModelNotFound))
	assert.True(t, errors.Is(p.Reload(context.Background(), "missing"), ErrModelNotFound))
}

func TestRegister_MissingArtifact(t *testing.T) {
	p := newPool(t)
	err := p.Register(context.Background(), testModel, filepath.Join(t.TempDir(), "nope.gz"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
	assert.False(t, p.Ready())
}

func TestRegister_WatchFailureLeavesNoEntry(t *testing.T) {
	p := newPool(t, WithWatch(true))
	require.NotNil(t, p.watcher)
	require.NoError(t, p.watcher.Close())

	err := p.Register(context.Background(), testModel, writeArtifact(t, trainModel(t, false)))
	require.Error(t, err)
	assert.Empty(t, p.Models())
	assert.False(t, p.Ready())
	_, err = p.Predict(context.Background(), testModel, model.Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestPredict_DefaultSize(t *testing.T) {
	p := newPool(t)
	assert.Greater(t, p.Size(), 0)
}

func TestPredict_ConcurrentNoCrossTalk(t *testing.T) {
	m := trainModel(t, false)
	p := newPool(t, WithSize(4))
	require.NoError(t, p.Register(context.Background(), testModel, writeArtifact(t, m)))

	texts := []string{
		"I love this spaghetti.",
		"this was an extremely bad steak",
		"This was a horrible meal",
		"the waiter was friendly and the soup was lovely",
		"",
		"cold fries and rude staff",
	}
	want := make(map[string]model.Prediction, len(texts))
	for _, text := range texts {
		want[text] = m.Predict(model.Input{Text: text})
	}

	const workers = 32
	const perWorker = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				text := texts[(w+i)%len(texts)]
				got, err := p.Predict(context.Background(), testModel, model.Input{Text: text})
				if err != nil {
					errs <- err
					return
				}
				if got != want[text] {
					errs <- fmt.Errorf("worker %d: %q got %+v, want %+v", w, text, got, want[text])
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, p.free, p.Size(), "every predictor must be returned")
}

func TestPredict_ContextCancelledWhileWaiting(t *testing.T) {
	m := trainModel(t, false)
	p := newPool(t, WithSize(1))
	require.NoError(t, p.Register(context.Background(), testModel, writeArtifact(t, m)))

	held, err := p.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Predict(ctx, testModel, model.Input{Text: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.release(held)
	_, err = p.Predict(context.Background(), testModel, model.Input{Text: "hi"})
	assert.NoError(t, err)
}

func TestPredictBatch(t *testing.T) {
	m := trainModel(t, false)
	p := newPool(t, WithSize(1))
	require.NoError(t, p.Register(context.Background(), testModel, writeArtifact(t, m)))

	ins := []model.Input{{Text: "This was a horrible meal"}, {Text: "I love this spaghetti."}}
	got, err := p.PredictBatch(context.Background(), testModel, ins)
	require.NoError(t, err)
	assert.Equal(t, m.PredictBatch(ins), got)
}

func TestReload(t *testing.T) {
	path := writeArtifact(t, trainModel(t, false))

	var hookErrs []error
	p := newPool(t, WithReloadHook(func(name string, err error) {
		assert.Equal(t, testModel, name)
		hookErrs = append(hookErrs, err)
	}))
	require.NoError(t, p.Register(context.Background(), testModel, path))

	in := model.Input{Text: "I love this spaghetti."}
	before, err := p.Predict(context.Background(), testModel, in)
	require.NoError(t, err)
	require.True(t, before.Label)

	require.NoError(t, trainModel(t, true).SaveFile(path))
	require.NoError(t, p.Reload(context.Background(), testModel))

	after, err := p.Predict(context.Background(), testModel, in)
	require.NoError(t, err)
	assert.False(t, after.Label)
	assert.Equal(t, []error{nil}, hookErrs)
}

func TestReload_FailureKeepsPreviousModel(t *testing.T) {
	m := trainModel(t, false)
	path := writeArtifact(t, m)
	p := newPool(t)
	require.NoError(t, p.Register(context.Background(), testModel, path))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	err := p.Reload(context.Background(), testModel)
	assert.True(t, errors.Is(err, engine.ErrCorruptArtifact))

	in := model.Input{Text: "this was an extremely bad steak"}
	got, err := p.Predict(context.Background(), testModel, in)
	require.NoError(t, err)
	assert.Equal(t, m.Predict(in), got)
}

func TestWatch_ReloadsOnRename(t *testing.T) {
	path := writeArtifact(t, trainModel(t, false))
	p := newPool(t, WithWatch(true))
	require.NoError(t, p.Register(context.Background(), testModel, path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	require.NoError(t, trainModel(t, true).SaveFile(path))

	in := model.Input{Text: "I love this spaghetti."}
	assert.Eventually(t, func() bool {
		got, err := p.Predict(context.Background(), testModel, in)
		return err == nil && !got.Label
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatch_Disabled(t *testing.T) {
	p := newPool(t)
	assert.NoError(t, p.Watch(context.Background()))
}

func TestClose(t *testing.T) {
	p := newPool(t, WithWatch(true))
	require.NoError(t, p.Register(context.Background(), testModel, writeArtifact(t, trainModel(t, false))))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.False(t, p.Ready())
	_, err := p.Predict(context.Background(), testModel, model.Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrClosed)
}
