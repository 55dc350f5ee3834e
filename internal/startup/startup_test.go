package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("FLICKS_TEST_UNSET")
	if got := getEnv("FLICKS_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv unset = %q, want fallback", got)
	}

	t.Setenv("FLICKS_TEST_SET", "custom")
	if got := getEnv("FLICKS_TEST_SET", "fallback"); got != "custom" {
		t.Errorf("getEnv set = %q, want custom", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"false", true, false},
		{"1", false, true},
		{"0", true, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}

	for _, tt := range tests {
		t.Setenv("FLICKS_TEST_BOOL", tt.value)
		if got := getEnvBool("FLICKS_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FLICKS_TEST_INT", "128")
	if got := getEnvInt("FLICKS_TEST_INT", 64); got != 128 {
		t.Errorf("getEnvInt = %d, want 128", got)
	}

	t.Setenv("FLICKS_TEST_INT", "-3")
	if got := getEnvInt("FLICKS_TEST_INT", 64); got != 64 {
		t.Errorf("getEnvInt negative = %d, want default 64", got)
	}

	t.Setenv("FLICKS_TEST_INT", "abc")
	if got := getEnvInt("FLICKS_TEST_INT", 64); got != 64 {
		t.Errorf("getEnvInt garbage = %d, want default 64", got)
	}
}

func TestLoadConfigDerivedPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.DatabasePath != filepath.Join(dir, "flicks.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if config.StorageDir != filepath.Join(dir, "objects") {
		t.Errorf("StorageDir = %q", config.StorageDir)
	}
	if config.WorkspaceDir != filepath.Join(dir, "work") {
		t.Errorf("WorkspaceDir = %q", config.WorkspaceDir)
	}

	// LoadConfig must have created the storage directory.
	if info, err := os.Stat(config.StorageDir); err != nil || !info.IsDir() {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestEnsureDirectoryRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ensureDirectory(file, "test"); err == nil {
		t.Error("ensureDirectory should fail on a regular file")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/media/asset/{id}", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {}).Methods("GET", "HEAD")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Errorf("got %d routes, want 3 (one per method)", len(routes))
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/media/asset/{id}", "api/media"},
		{"/api/flicks/sessions/start", "api/flicks"},
		{"/healthz", "healthz"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
