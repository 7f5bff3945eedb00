package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newReleaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/"+Repo+"/releases/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckForUpdate(t *testing.T) {
	server := newReleaseServer(t, http.StatusOK, `{"tag_name":"v1.2.0","html_url":"https://example.com/r"}`)
	checker := NewChecker(WithAPIBase(server.URL), WithHTTPClient(server.Client()))

	hasUpdate, release, err := checker.CheckForUpdate(context.Background(), "v1.1.9")
	if err != nil {
		t.Fatalf("CheckForUpdate failed: %v", err)
	}
	if !hasUpdate || release.TagName != "v1.2.0" {
		t.Errorf("expected update to v1.2.0, got %v %+v", hasUpdate, release)
	}

	hasUpdate, _, err = checker.CheckForUpdate(context.Background(), "v1.2.0")
	if err != nil || hasUpdate {
		t.Errorf("same version should not report update: %v %v", hasUpdate, err)
	}

	hasUpdate, _, err = checker.CheckForUpdate(context.Background(), "dev")
	if err != nil || hasUpdate {
		t.Errorf("dev build should not report update: %v %v", hasUpdate, err)
	}
}

func TestCheckForUpdateHTTPError(t *testing.T) {
	server := newReleaseServer(t, http.StatusNotFound, `{}`)
	checker := NewChecker(WithAPIBase(server.URL))

	if _, _, err := checker.CheckForUpdate(context.Background(), "v1.0.0"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		v1, v2 string
		want   int
	}{
		{"v1.0.0", "v1.0.1", -1},
		{"1.2.0", "v1.1.9", 1},
		{"v2.0", "v2.0.0", -1},
		{"v3.1.4", "3.1.4", 0},
	}
	for _, tc := range cases {
		if got := compareVersions(tc.v1, tc.v2); got != tc.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.v1, tc.v2, got, tc.want)
		}
	}
}
