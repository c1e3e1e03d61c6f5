package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"wipe-go/internal/wipe"
)

// Environment variables that, when both set, replace the default AWS
// credential chain with static credentials.
const (
	EnvS3AccessKeyID     = "WIPE_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "WIPE_S3_SECRET_ACCESS_KEY"
)

// s3Timeout bounds every S3 call the vault makes.
const s3Timeout = 60 * time.Second

// s3API is the subset of *s3.Client the vault uses.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// uploader is the subset of *manager.Uploader the vault uses.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Vault stores certificate documents as objects under
// s3://<bucket>/<prefix>/certificates/<certificate ID>.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader uploader
}

// S3Options configures NewS3Vault.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, for S3-compatible stores; enables path-style addressing
}

// NewS3Vault creates an S3 vault using the default AWS configuration chain.
func NewS3Vault(ctx context.Context, name string, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	keyID, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey)
	if keyID != "" && secret != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Vault(name, opts.Bucket, opts.Prefix, client, manager.NewUploader(client)), nil
}

func newS3Vault(name, bucket, prefix string, client s3API, up uploader) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: up,
	}
}

func (v *S3Vault) Name() string { return v.name }

func (v *S3Vault) key(certificateID string) string {
	return path.Join(v.prefix, "certificates", certificateID)
}

// PutCertificate uploads a certificate document. The upload is conditional
// on the key not existing yet.
func (v *S3Vault) PutCertificate(certificateID string, r io.Reader, size int64) error {
	if err := validateID(certificateID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	key := v.key(certificateID)
	if exists, err := v.exists(ctx, key); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateExists)
	}

	// Certificate documents are small; buffering lets the size be checked
	// before anything reaches the bucket.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateExists)
		}
		return fmt.Errorf("uploading s3://%s/%s: %w", v.bucket, key, err)
	}
	return nil
}

// GetCertificate downloads a certificate document and writes it to w.
func (v *S3Vault) GetCertificate(certificateID string, w io.Writer) error {
	if err := validateID(certificateID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	key := v.key(certificateID)
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateNotFound)
		}
		return fmt.Errorf("downloading s3://%s/%s: %w", v.bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading s3://%s/%s: %w", v.bucket, key, err)
	}
	return nil
}

// List returns the stored certificate IDs in sorted order.
func (v *S3Vault) List() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	prefix := v.key("") + "/"
	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(prefix),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", v.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if id := strings.TrimPrefix(aws.ToString(obj.Key), prefix); id != "" && !strings.Contains(id, "/") {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ValidateSetup verifies that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) exists(ctx context.Context, key string) (bool, error) {
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("checking s3://%s/%s: %w", v.bucket, key, err)
}

// Compile-time check that S3Vault implements wipe.Vault interface
var _ wipe.Vault = (*S3Vault)(nil)
