package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deniedEndpoint answers every S3 call with AccessDenied.
func deniedEndpoint(t *testing.T) *MinIOStore {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message>` +
			`<BucketName>recipes</BucketName><RequestId>1</RequestId></Error>`))
	}))
	t.Cleanup(srv.Close)

	mc, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("key", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinIOStore{client: mc, bucket: "recipes"}
}

func TestMinIOStore_ListStopsOnError(t *testing.T) {
	store := deniedEndpoint(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	objs, err := store.List(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing bucket recipes")
	assert.Nil(t, objs)
	assert.NoError(t, ctx.Err(), "List should return without waiting on the caller's context")
}
