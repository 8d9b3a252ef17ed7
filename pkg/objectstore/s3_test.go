package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = string(body)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func newFakePutter() *fakePutter {
	return &fakePutter{objects: map[string]string{}, types: map[string]string{}}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "gpt-4_ratings_by_record.csv", "uid,RQ1\nr1,2.50\n")
	b := writeFile(t, dir, "report.json", `{"accepted":1}`)

	putter := newFakePutter()
	u := NewWithClient(putter, "results", WithPrefix("/runs/2024-01-01/"), WithLogger(zaptest.NewLogger(t)))

	refs, err := u.UploadFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"s3://results/runs/2024-01-01/gpt-4_ratings_by_record.csv",
		"s3://results/runs/2024-01-01/report.json",
	}, refs)

	assert.Equal(t, "uid,RQ1\nr1,2.50\n", putter.objects["results/runs/2024-01-01/gpt-4_ratings_by_record.csv"])
	assert.Equal(t, "text/csv", putter.types["results/runs/2024-01-01/gpt-4_ratings_by_record.csv"])
	assert.Equal(t, "application/json", putter.types["results/runs/2024-01-01/report.json"])
}

func TestUploadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		u := NewWithClient(newFakePutter(), "results")
		_, err := u.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorContains(t, err, "open")
	})

	t.Run("put failure stops the batch", func(t *testing.T) {
		dir := t.TempDir()
		p := writeFile(t, dir, "a.csv", "x")
		putter := newFakePutter()
		putter.err = errors.New("access denied")

		refs, err := NewWithClient(putter, "results").UploadFiles(context.Background(), []string{p, p})
		assert.ErrorContains(t, err, "put a.csv: access denied")
		assert.Empty(t, refs)
	})
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestNewWithClientPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewWithClient(nil, "b") })
}
