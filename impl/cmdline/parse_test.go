package cmdline

import (
	"os"
	"path/filepath"
	"testing"
)

// Test that defaults are present in the parsed config when nothing is overridden. This
// runs first so that the flag defaults are applied to a fresh parse.
func TestParseDefaults(t *testing.T) {
	ClearParse()
	os.Args = []string{"bin/toymanifest", "serve"}
	fromCmdline, cfg, err := Parse()
	if err != nil || fromCmdline.Command != "serve" {
		t.FailNow()
	}
	if fromCmdline.Port || fromCmdline.DataPath || fromCmdline.StoreType {
		t.Fail()
	}
	if cfg.Port != 8080 || cfg.DataPath != "/var/lib/toymanifest" || cfg.StoreType != "bstore" || cfg.PartitionHorizon != 12 ||
		cfg.ChunkSize != 1024*1024 || cfg.LogLevel != "error" {
		t.Fail()
	}
}

// Test that the parser detects when defaults are overridden on the command line for the serve command
func TestParseServe(t *testing.T) {
	ClearParse()
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fail()
	}
	defer os.RemoveAll(td)
	afile := filepath.Join(td, "foo")
	os.WriteFile(afile, []byte("foo"), 0755)

	os.Args = []string{"bin/toymanifest", "--data-path", td, "--log-level", "info", "--config-file", afile, "--store-type", "memory",
		"--partition-horizon", "4", "serve", "--port", "22", "--metrics", "2112", "--chunk-size", "4096", "--import-path", td}
	fromCmdline, cfg, err := Parse()
	if err != nil {
		t.FailNow()
	}
	if fromCmdline.Command != "serve" {
		t.FailNow()
	}
	switch {
	case !fromCmdline.LogLevel:
		t.Fail()
	case !fromCmdline.ConfigFile:
		t.Fail()
	case !fromCmdline.DataPath:
		t.Fail()
	case !fromCmdline.StoreType:
		t.Fail()
	case !fromCmdline.PartitionHorizon:
		t.Fail()
	case !fromCmdline.Port:
		t.Fail()
	case !fromCmdline.Metrics:
		t.Fail()
	case !fromCmdline.ChunkSize:
		t.Fail()
	case !fromCmdline.ImportPath:
		t.Fail()
	case fromCmdline.LogFile:
		t.Fail()
	}
	if cfg.Port != 22 || cfg.Metrics != 2112 || cfg.ChunkSize != 4096 || cfg.StoreType != "memory" || cfg.PartitionHorizon != 4 || cfg.ImportPath != td {
		t.Fail()
	}
}

func TestParseImport(t *testing.T) {
	ClearParse()
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fail()
	}
	defer os.RemoveAll(td)
	os.Args = []string{"bin/toymanifest", "import", "--path", td}
	fromCmdline, cfg, err := Parse()
	if err != nil || fromCmdline.Command != "import" || !fromCmdline.ImportPath || cfg.ImportPath != td {
		t.Fail()
	}
}

func TestParsePartitions(t *testing.T) {
	ClearParse()
	os.Args = []string{"bin/toymanifest", "--store-type", "bstore", "partitions"}
	fromCmdline, _, err := Parse()
	if err != nil || fromCmdline.Command != "partitions" {
		t.Fail()
	}
}

func TestParseBadValues(t *testing.T) {
	for _, args := range [][]string{
		{"bin/toymanifest", "--log-level", "loud", "serve"},
		{"bin/toymanifest", "--store-type", "postgres", "serve"},
		{"bin/toymanifest", "serve", "--chunk-size", "0"},
		{"bin/toymanifest", "--config-file", "/no/such/file.yaml", "serve"},
	} {
		ClearParse()
		os.Args = args
		if _, _, err := Parse(); err == nil {
			t.Errorf("expected %v to fail", args)
		}
	}
}
