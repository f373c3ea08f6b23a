package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"boqcore/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	info, err := store.Put(ctx, "exports/boq.onlv", bytes.NewReader([]byte("<lv-liste/>")), core.PutOptions{ContentType: "application/xml"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/boq.onlv" || info.ContentType != "application/xml" || info.Size < 5 {
		t.Fatalf("unexpected info %#v", info)
	}
	if _, err := store.Put(ctx, "exports/boq.onlv", bytes.NewReader([]byte("ignored")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	if _, err := store.Head(ctx, "exports/boq.onlv"); err != nil {
		t.Fatalf("head: %v", err)
	}
	_, rc, err := store.Get(ctx, "exports/boq.onlv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "<lv-liste/>" {
		t.Fatalf("get mismatch: %q", string(data))
	}
	list, err := store.List(ctx, "exports/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if url, err := store.PresignURL(ctx, "exports/boq.onlv", core.SignedURLOptions{}); err != nil || url == "" {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "exports/boq.onlv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
}

func TestStore_New(t *testing.T) {
	_ = os.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	_ = os.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	defer func() {
		_ = os.Unsetenv("AWS_ACCESS_KEY_ID")
		_ = os.Unsetenv("AWS_SECRET_ACCESS_KEY")
	}()
	s, err := New(context.Background(), Config{Bucket: "bkt", Region: "us-east-1", Endpoint: "https://mock.s3.local", PathStyle: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 {
		t.Fatalf("expected DriverS3")
	}
}

func TestStore_OpenFromEnv(t *testing.T) {
	oldB := os.Getenv("BOQCORE_BLOB_S3_BUCKET")
	oldR := os.Getenv("BOQCORE_BLOB_S3_REGION")
	_ = os.Setenv("BOQCORE_BLOB_S3_BUCKET", "env-bucket")
	_ = os.Setenv("BOQCORE_BLOB_S3_REGION", "us-east-1")
	defer func() {
		_ = os.Setenv("BOQCORE_BLOB_S3_BUCKET", oldB)
		_ = os.Setenv("BOQCORE_BLOB_S3_REGION", oldR)
	}()
	if _, err := OpenFromEnv(context.Background()); err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
	_ = os.Unsetenv("BOQCORE_BLOB_S3_BUCKET")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestStore_ErrorPaths(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); err == nil {
		t.Fatalf("expected head error for missing key")
	}
	if _, _, err := store.Get(ctx, "nope"); err == nil {
		t.Fatalf("expected get error for missing key")
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected presign unsupported error")
	}
	if _, err := New(ctx, Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestStore_PresignCustomExpiry(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.onlv", bytes.NewReader([]byte("body")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if url, err := store.PresignURL(ctx, "k.onlv", core.SignedURLOptions{Expiry: 30 * time.Second}); err != nil || url == "" {
		t.Fatalf("presign custom: %v %s", err, url)
	}
	if list, err := store.List(ctx, "no-such-prefix/"); err != nil || len(list) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, list)
	}
}

// pagingTransport serves ListObjectsV2 in two pages to exercise continuation handling.
type pagingTransport struct {
	inner *mockTransport
}

func (p *pagingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || !strings.Contains(req.URL.RawQuery, "list-type=2") {
		return p.inner.RoundTrip(req)
	}
	prefix := req.URL.Query().Get("prefix")
	cont := req.URL.Query().Get("continuation-token")
	var keys []string
	for k := range p.inner.objects {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?><ListBucketResult>")
	if cont == "" && len(keys) > 1 {
		b.WriteString("<IsTruncated>true</IsTruncated><NextContinuationToken>tok123</NextContinuationToken>")
		keys = keys[:1]
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
		if cont != "" && len(keys) > 1 {
			keys = keys[1:]
		}
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(p.inner.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return mockResponse(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
}

func TestStore_ListPagination(t *testing.T) {
	rt := &pagingTransport{inner: &mockTransport{objects: map[string]mockObject{
		"k1.onlv": {body: []byte("a")},
		"k2.onlv": {body: []byte("bb")},
	}}}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	store := &Store{client: client, bucket: "test-bucket", presign: awsS3.NewPresignClient(client)}
	list, err := store.List(context.Background(), "k")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two items via pagination: %v %+v", err, list)
	}
	if list[0].Key != "k1.onlv" || list[1].Key != "k2.onlv" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestStore_FromHeadNilBranches(t *testing.T) {
	store := NewMockForTests()
	info := store.fromHead("k", 10, nil, aws.String("\"etagval\""), map[string]string{"x": "y"}, nil)
	if info.ETag != "etagval" || info.ContentType != "" || info.Key != "k" || info.Size != 10 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDecodeChunkedHelper(t *testing.T) {
	if _, ok := decodeChunked([]byte("not-chunked")); ok {
		t.Fatalf("expected fail on plain payload")
	}
	if _, ok := decodeChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello")
	}
}

func TestMockTransportUnsupportedMethod(t *testing.T) {
	rt := &mockTransport{objects: make(map[string]mockObject)}
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := rt.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
