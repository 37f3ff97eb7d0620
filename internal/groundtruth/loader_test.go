package groundtruth

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://bucket/data/gt.json", "bucket", "data/gt.json", false},
		{"s3://bucket/gt.json", "bucket", "gt.json", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/", "", "", true},
		{"https://bucket/gt.json", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			continue
		}
		if bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, key, tt.wantBucket, tt.wantKey)
		}
	}
}

func TestDecodePreservesOrder(t *testing.T) {
	payload := `[
		{"question": "q1", "answer": "a1"},
		{"question": "q2", "answer": "a2"},
		{"question": "q3", "answer": "a3"}
	]`
	questions, err := Decode(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("len = %d, want 3", len(questions))
	}
	for i, want := range []string{"q1", "q2", "q3"} {
		if questions[i].Question != want {
			t.Errorf("questions[%d].Question = %q, want %q", i, questions[i].Question, want)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"not": "an array"}`)); err == nil {
		t.Error("Decode accepted a non-array payload")
	}
}

type fakeS3 struct {
	body string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestLoad(t *testing.T) {
	loader := NewLoaderWithClient(&fakeS3{body: `[{"question": "q", "answer": "a"}]`})
	questions, err := loader.Load(context.Background(), "s3://bucket/gt.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(questions) != 1 || questions[0].Answer != "a" {
		t.Errorf("questions = %+v", questions)
	}
}

func TestLoadRejectsBadURI(t *testing.T) {
	loader := NewLoaderWithClient(&fakeS3{})
	if _, err := loader.Load(context.Background(), "not-a-uri"); err == nil {
		t.Error("Load accepted a bad URI")
	}
}
