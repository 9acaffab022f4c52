package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/testsupport"
)

// fakeS3 keeps objects in a map and honours Prefix and Delimiter.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	bucket   bool
	created  bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, pageSize: 1000, bucket: true}
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	limit := f.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}

	start := aws.ToString(in.ContinuationToken)
	out := &s3.ListObjectsV2Output{}
	for _, key := range sortedKeys(f.objects) {
		if !strings.HasPrefix(key, prefix) || key <= start {
			continue
		}
		if aws.ToString(in.Delimiter) != "" && strings.Contains(strings.TrimPrefix(key, prefix), "/") {
			continue
		}
		if len(out.Contents) == limit {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = out.Contents[len(out.Contents)-1].Key
			break
		}
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key]))),
		})
	}
	return out, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucket {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	f.bucket = true
	return &s3.CreateBucketOutput{}, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func newTestGateway(t *testing.T, client *fakeS3) *Gateway {
	t.Helper()
	obs, _ := testsupport.NewObservability(t)
	g, err := newGateway(client, "manga-library", "us-east-2", obs)
	require.NoError(t, err)
	return g
}

func TestGateway_KeysDropLeadingSlash(t *testing.T) {
	client := newFakeS3()
	g := newTestGateway(t, client)

	require.NoError(t, g.WriteBytes(context.Background(), "/library/Solo/12/001.jpg", []byte("img")))
	assert.Contains(t, client.objects, "library/Solo/12/001.jpg")
}

func TestGateway_FolderExists(t *testing.T) {
	client := newFakeS3()
	client.objects["library/Solo/12/001.jpg"] = []byte("x")
	g := newTestGateway(t, client)

	exists, err := g.FolderExists(context.Background(), "/library/Solo/12")
	require.NoError(t, err)
	assert.True(t, exists)

	// prefix match must stop at a folder boundary
	exists, err = g.FolderExists(context.Background(), "/library/Solo/1")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, g.CreateFolder(context.Background(), "/anything"))
}

func TestGateway_HasFileAboveSizeAcrossPages(t *testing.T) {
	client := newFakeS3()
	client.pageSize = 2
	client.objects["lib/ch/001.jpg"] = make([]byte, 10)
	client.objects["lib/ch/002.jpg"] = make([]byte, 10)
	client.objects["lib/ch/003.jpg"] = make([]byte, 20000)
	client.objects["lib/ch/sub/big.jpg"] = make([]byte, 90000)
	g := newTestGateway(t, client)

	above, err := g.HasFileAboveSize(context.Background(), "/lib/ch", 15360)
	require.NoError(t, err)
	assert.True(t, above)

	above, err = g.HasFileAboveSize(context.Background(), "/lib/ch", 20000)
	require.NoError(t, err)
	assert.False(t, above, "equal size and nested objects do not count")
}

func TestGateway_CreateExclusive(t *testing.T) {
	client := newFakeS3()
	g := newTestGateway(t, client)
	ctx := context.Background()

	w, err := g.CreateExclusive(ctx, "/lib/ch/004.jpg")
	require.NoError(t, err)

	_, err = g.CreateExclusive(ctx, "/lib/ch/004.jpg")
	assert.True(t, errors.Is(err, ports.ErrFileLocked))

	_, err = io.WriteString(w, "page")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "page", string(client.objects["lib/ch/004.jpg"]))

	w, err = g.CreateExclusive(ctx, "/lib/ch/004.jpg")
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestGateway_EnsureBucketCreatesMissing(t *testing.T) {
	client := newFakeS3()
	client.bucket = false
	g := newTestGateway(t, client)

	require.NoError(t, g.ensureBucketExists(context.Background()))
	assert.True(t, client.created)
}
