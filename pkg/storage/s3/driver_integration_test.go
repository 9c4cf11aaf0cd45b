//go:build integration

package s3_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coords3 "github.com/catalogfs/commitcoord/pkg/storage/s3"
)

// localstackHelper starts (or reuses) a Localstack S3 endpoint the same
// way pkg/payload/store/s3 does it upstream: via testcontainers when no
// LOCALSTACK_ENDPOINT is set, via a raw endpoint otherwise.
type localstackHelper struct {
	container testcontainers.Container
	endpoint  string
	client    *s3.Client
}

func newLocalstackHelper(t *testing.T) *localstackHelper {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		h := &localstackHelper{endpoint: endpoint}
		h.createClient(t)
		return h
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)

	h := &localstackHelper{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	h.createClient(t)
	return h
}

func (h *localstackHelper) createClient(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	h.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &h.endpoint
		o.UsePathStyle = true
	})
}

func (h *localstackHelper) close(t *testing.T) {
	t.Helper()
	if h.container != nil {
		require.NoError(t, h.container.Terminate(context.Background()))
	}
}

func TestS3DriverAgainstLocalstack(t *testing.T) {
	h := newLocalstackHelper(t)
	defer h.close(t)

	ctx := context.Background()
	bucket := "commitcoord-test"
	_, err := h.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket})
	require.NoError(t, err)

	d := coords3.New(h.client, bucket, "coord")

	require.NoError(t, d.WriteFileWithoutGuarantees(ctx, "tracker/1.txt", []byte("1")))

	exists, err := d.Exists(ctx, "tracker/1.txt")
	require.NoError(t, err)
	require.True(t, exists)

	entries, err := d.ListAllFiles(ctx, "tracker", true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "1.txt", entries[0].Name)

	require.NoError(t, d.Delete(ctx, "tracker/1.txt", false))
	exists, err = d.Exists(ctx, "tracker/1.txt")
	require.NoError(t, err)
	require.False(t, exists)

	_, _ = h.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &bucket})
}
