package r2s3

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type captured struct {
	path   string
	auth   string
	sha    string
	ctype  string
	body   []byte
	method string
}

func captureServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			sha:    r.Header.Get("x-amz-content-sha256"),
			ctype:  r.Header.Get("Content-Type"),
			body:   b,
			method: r.Method,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestMirrorUploadsRunArtifacts(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK)
	defer srv.Close()

	c, err := New(srv.URL, "runs", "AKID", "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	body := []byte(`{"version":1}`)
	if err := os.WriteFile(planPath, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewMirror(c, "/idlecraft/", 1, 4, time.Second, nil)
	m.Enqueue(Artifact{RunID: "run-1", Kind: KindPlan, Path: planPath})
	m.Close()

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("requests=%d", len(reqs))
	}
	r := reqs[0]
	if r.method != http.MethodPut || r.path != "/runs/idlecraft/run-1/plan/plan.json" {
		t.Fatalf("request %s %s", r.method, r.path)
	}
	sum := sha256.Sum256(body)
	if r.sha != hex.EncodeToString(sum[:]) || string(r.body) != string(body) {
		t.Fatalf("payload hash %s body %q", r.sha, r.body)
	}
	if !strings.HasPrefix(r.auth, "AWS4-HMAC-SHA256 Credential=AKID/") || !strings.Contains(r.auth, "SignedHeaders=host;x-amz-content-sha256;x-amz-date") {
		t.Fatalf("authorization %q", r.auth)
	}
	if r.ctype != "application/json" {
		t.Fatalf("content type %q", r.ctype)
	}
	if st := m.Stats(); st.UploadSuccessTotal != 1 || st.UploadFailTotal != 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestMirrorCountsFailedUploads(t *testing.T) {
	srv, requests := captureServer(t, http.StatusInternalServerError)
	defer srv.Close()

	c, err := New(srv.URL, "runs", "AKID", "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := filepath.Join(t.TempDir(), "x.repro.zst")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := NewMirror(c, "", 1, 4, time.Second, nil)
	m.backoff = time.Millisecond
	m.Enqueue(Artifact{RunID: "r", Kind: KindRepro, Path: p})
	m.Close()

	if n := len(requests()); n != 4 {
		t.Fatalf("attempts=%d want 4", n)
	}
	if st := m.Stats(); st.UploadFailTotal != 1 || st.UploadSuccessTotal != 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestArtifactKey(t *testing.T) {
	k, err := Artifact{RunID: "r1", Kind: KindTrace, Path: "/tmp/trace/steps/steps-2026.jsonl.zst"}.Key("pfx")
	if err != nil || k != "pfx/r1/trace/steps-2026.jsonl.zst" {
		t.Fatalf("key %q err %v", k, err)
	}
	if _, err := (Artifact{Kind: KindPlan, Path: "a"}).Key(""); err == nil {
		t.Fatalf("expected error without run id")
	}
	if _, err := (Artifact{RunID: "..", Kind: KindPlan, Path: "plan.json"}).Key("pfx"); err == nil {
		t.Fatalf("run id must not climb out of the prefix")
	}
	if k, err := (Artifact{RunID: "r", Kind: KindPlan, Path: "plan.json"}).Key("/a//b/"); err != nil || k != "a/b/r/plan/plan.json" {
		t.Fatalf("key %q err %v", k, err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("example.com", "b", "", "s"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNilMirrorIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue(Artifact{RunID: "r", Kind: KindPlan, Path: "p"})
	if err := m.EnqueueDir("r", KindTrace, "/nonexistent"); err != nil {
		t.Fatalf("EnqueueDir: %v", err)
	}
	m.Close()
}
