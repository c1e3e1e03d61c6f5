package vault

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket implementing s3API and uploader.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	f.objects[aws.ToString(in.Key)] = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func TestS3Vault_KeyLayout(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("offsite", "erase-certs", "/bench-01/", fake, fake)

	if err := v.PutCertificate("CERT-2024-A", strings.NewReader("doc"), 3); err != nil {
		t.Fatalf("PutCertificate() error = %v", err)
	}

	if _, ok := fake.objects["bench-01/certificates/CERT-2024-A"]; !ok {
		t.Errorf("objects = %v, want key bench-01/certificates/CERT-2024-A", fake.objects)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("%d uploads, want 1", len(fake.puts))
	}
	if got := aws.ToString(fake.puts[0].IfNoneMatch); got != "*" {
		t.Errorf("IfNoneMatch = %q, want *", got)
	}
	if got := aws.ToString(fake.puts[0].Bucket); got != "erase-certs" {
		t.Errorf("Bucket = %q, want erase-certs", got)
	}
}

func TestS3Vault_NoPrefix(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("offsite", "erase-certs", "", fake, fake)

	if err := v.PutCertificate("CERT-2024-A", strings.NewReader("doc"), 3); err != nil {
		t.Fatalf("PutCertificate() error = %v", err)
	}
	if _, ok := fake.objects["certificates/CERT-2024-A"]; !ok {
		t.Errorf("objects = %v, want key certificates/CERT-2024-A", fake.objects)
	}
}
