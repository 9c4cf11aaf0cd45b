// Package s3 provides an S3-backed implementation of storage.Driver, for
// running the coordinator against a bucket shared by multiple hosts.
package s3

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/catalogfs/commitcoord/pkg/storage"
)

// Client is the subset of *s3.Client the driver needs, so tests can supply
// a fake without standing up Localstack.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Driver is an S3-backed storage.Driver. Every coordinator path is stored
// as an object key under Prefix; directories are not real S3 concepts, so
// CreateDirectory is a no-op and "recursive" listing/delete operate over
// key prefixes.
//
// Safety here depends on S3's read-after-write consistency for new keys
// and for LIST-after-PUT (guaranteed on current S3; verify for
// S3-compatible backends before trusting this driver with the protocol's
// safety properties — see spec's §5 ordering requirements).
type Driver struct {
	Client Client
	Bucket string
	Prefix string
}

// New creates a Driver over an existing S3 client.
func New(client Client, bucket, prefix string) *Driver {
	return &Driver{Client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

func (d *Driver) key(p string) string {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if d.Prefix == "" {
		return p
	}
	if p == "" {
		return d.Prefix
	}
	return d.Prefix + "/" + p
}

// CreateDirectory implements storage.Driver. S3 has no directories; this
// is a no-op kept only to satisfy the interface.
func (d *Driver) CreateDirectory(_ context.Context, _ string) error {
	return nil
}

// Exists implements storage.Driver.
func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	_, err := d.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(d.Bucket),
		Key:    awssdk.String(d.key(p)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	var nfk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nfk) || errors.As(err, &nf)
}

// ListAllFiles implements storage.Driver.
func (d *Driver) ListAllFiles(ctx context.Context, dir string, recursive bool) ([]storage.Entry, error) {
	prefix := d.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: awssdk.String(d.Bucket),
		Prefix: awssdk.String(prefix),
	}
	if !recursive {
		input.Delimiter = awssdk.String("/")
	}

	var entries []storage.Entry
	paginator := s3.NewListObjectsV2Paginator(d.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := awssdk.ToString(obj.Key)
			rel := strings.TrimPrefix(key, prefix)
			if rel == "" {
				continue
			}
			name := rel
			if idx := strings.LastIndex(rel, "/"); idx >= 0 {
				name = rel[idx+1:]
			}
			var lastModified time.Time
			if obj.LastModified != nil {
				lastModified = *obj.LastModified
			}
			entries = append(entries, storage.Entry{Name: name, LastModified: lastModified})
		}
	}
	return entries, nil
}

// WriteFileWithoutGuarantees implements storage.Driver.
func (d *Driver) WriteFileWithoutGuarantees(ctx context.Context, p string, content []byte) error {
	_, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: awssdk.String(d.Bucket),
		Key:    awssdk.String(d.key(p)),
		Body:   bytes.NewReader(content),
	})
	return err
}

// Delete implements storage.Driver.
func (d *Driver) Delete(ctx context.Context, p string, recursive bool) error {
	key := d.key(p)
	if !recursive {
		_, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: awssdk.String(d.Bucket),
			Key:    awssdk.String(key),
		})
		return err
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(d.Client, &s3.ListObjectsV2Input{
		Bucket: awssdk.String(d.Bucket),
		Prefix: awssdk.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if len(page.Contents) == 0 {
			continue
		}
		var ids []types.ObjectIdentifier
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := d.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: awssdk.String(d.Bucket),
			Delete: &types.Delete{Objects: ids},
		}); err != nil {
			return err
		}
	}
	// Also remove the exact key, in case it is itself an object and not
	// just a prefix of children (e.g. a leaf tombstone file).
	_, _ = d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(d.Bucket),
		Key:    awssdk.String(key),
	})
	return nil
}

var _ storage.Driver = (*Driver)(nil)
