package artifact

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudml/pkg/config"
	"fraudml/pkg/model"
)

func trainingSet() ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(11))
	var X [][]float64
	var y []int
	for i := 0; i < 120; i++ {
		label := i % 2
		row := []float64{rnd.NormFloat64() + 2*float64(label), rnd.NormFloat64(), rnd.NormFloat64()}
		X = append(X, row)
		y = append(y, label)
	}
	return X, y
}

func forestArtifact(t *testing.T) (*model.Artifact, [][]float64) {
	t.Helper()
	X, y := trainingSet()
	rf := model.NewRandomForest(model.WithNEstimators(8))
	require.NoError(t, rf.Fit(X, y))
	a, err := model.NewArtifact(rf, model.InputLayout{Columns: []string{"a", "b", "c"}}, model.Metadata{RunID: "r1"})
	require.NoError(t, err)
	return a, X
}

func TestFileStoreLoadNonexistent(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Load(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nonexistent", nf.Name)
}

func TestFileStoreMissingDirectory(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "never-created"))
	_, err := s.Load(context.Background(), "rf")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")
	s := NewFileStore(dir)
	a, X := forestArtifact(t)

	require.NoError(t, s.Save(ctx, "rf", a))
	_, err := os.Stat(filepath.Join(dir, "rf.gob"))
	require.NoError(t, err)

	back, err := s.Load(ctx, "rf")
	require.NoError(t, err)
	assert.Equal(t, model.FamilyEnsembleTree, back.Family)
	assert.Equal(t, "r1", back.Meta.RunID)

	orig, err := a.Classifier()
	require.NoError(t, err)
	restored, err := back.Classifier()
	require.NoError(t, err)

	want, err := orig.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantP, err := orig.PredictProba(X)
	require.NoError(t, err)
	gotP, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, wantP, gotP, 1e-9)
}

func TestFileStoreOverwriteAndList(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	a, _ := forestArtifact(t)

	require.NoError(t, s.Save(ctx, "rf", a))
	a.Meta.RunID = "r2"
	require.NoError(t, s.Save(ctx, "rf", a))
	require.NoError(t, s.Save(ctx, "backup", a))

	back, err := s.Load(ctx, "rf")
	require.NoError(t, err)
	assert.Equal(t, "r2", back.Meta.RunID)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"backup", "rf"}, names)

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files are left behind")
}

func TestFileStoreRejectsBadNames(t *testing.T) {
	s := NewFileStore(t.TempDir())
	a, _ := forestArtifact(t)
	assert.Error(t, s.Save(context.Background(), "../escape", a))
	_, err := s.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dt.gob"), []byte("not gob"), 0o644))
	_, err := NewFileStore(dir).Load(context.Background(), "dt")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

type countingStore struct {
	Store
	loads atomic.Int32
}

func (c *countingStore) Load(ctx context.Context, name string) (*model.Artifact, error) {
	c.loads.Add(1)
	return c.Store.Load(ctx, name)
}

func TestCacheLoadsOnce(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	a, _ := forestArtifact(t)
	require.NoError(t, fs.Save(ctx, "rf", a))

	store := &countingStore{Store: fs}
	cache := NewCache(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := cache.Get(ctx, "rf")
			assert.NoError(t, err)
			assert.Equal(t, model.FamilyEnsembleTree, l.Classifier.Family())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), store.loads.Load())
	assert.Equal(t, []string{"rf"}, cache.Names())

	avail, err := cache.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rf"}, avail)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	store := &countingStore{Store: fs}
	cache := NewCache(store, nil)

	_, err := cache.Get(ctx, "knn")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cache.Get(ctx, "knn")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(2), store.loads.Load())
	assert.Empty(t, cache.Names())
}

// TestRedisStore needs a reachable server, e.g. FRAUDML_TEST_REDIS_ADDR=localhost:6379.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FRAUDML_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FRAUDML_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	s := NewRedisStore(client, "fraudml:test:"+t.Name()+":")
	_, err := s.Load(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	a, X := forestArtifact(t)
	require.NoError(t, s.Save(ctx, "rf", a))
	t.Cleanup(func() { client.Del(ctx, "fraudml:test:"+t.Name()+":rf") })

	back, err := s.Load(ctx, "rf")
	require.NoError(t, err)
	restored, err := back.Classifier()
	require.NoError(t, err)
	orig, _ := a.Classifier()
	want, _ := orig.Predict(X)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rf"}, names)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, closeFn, err := Open(ctx, &config.Config{ArtifactBackend: "file", ModelDir: dir})
	require.NoError(t, err)
	defer closeFn()
	fs, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir)

	_, _, err = Open(ctx, &config.Config{ArtifactBackend: "s3"})
	assert.ErrorContains(t, err, "s3")
}
