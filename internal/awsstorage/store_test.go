package awsstorage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"aws default", Config{Bucket: "documentos"}, "https://documentos.s3.sa-east-1.amazonaws.com"},
		{"custom endpoint", Config{Bucket: "documentos", Endpoint: "http://localhost:9000/"}, "http://localhost:9000/documentos"},
		{"explicit base", Config{Bucket: "documentos", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publicBase(tt.cfg, "sa-east-1"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPresignWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "documentos",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.PublicURL("a.pdf"); ok {
		t.Fatal("private bucket returned a public URL")
	}
	link, err := s.PresignURL(context.Background(), "hormigones/abc/1-plano.pdf", 30*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(link, "http://localhost:9000/documentos/hormigones/abc/1-plano.pdf?") {
		t.Fatalf("unexpected presigned URL %q", link)
	}
	if !strings.Contains(link, "X-Amz-Expires=1800") {
		t.Fatalf("expiry missing from %q", link)
	}
}
