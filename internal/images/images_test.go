package images

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAvatarURL_Deterministic(t *testing.T) {
	a := AvatarURL("almaz")
	b := AvatarURL("almaz")
	if a != b {
		t.Fatalf("same name must derive the same avatar: %q vs %q", a, b)
	}
	if AvatarURL("nur") == a {
		t.Fatalf("different names must derive different avatars")
	}
	if !strings.Contains(AvatarURL("a b"), "seed=a+b") {
		t.Fatalf("name must be query-escaped: %q", AvatarURL("a b"))
	}
}

func TestUpload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("image"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"url":"https://cdn.example/img.png"}}`))
	}))
	defer ts.Close()

	u := NewUploader(ts.URL, "secret")
	got, err := u.Upload("img.png", strings.NewReader("fake-image-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if got != "https://cdn.example/img.png" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestUpload_NotConfigured(t *testing.T) {
	u := NewUploader("https://example.invalid", "")
	if _, err := u.Upload("img.png", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error when no api key is configured")
	}
}

func TestUpload_HostRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer ts.Close()

	u := NewUploader(ts.URL, "secret")
	if _, err := u.Upload("img.png", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for unsuccessful host response")
	}
}
