package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var testCfg = `
---
logLevel: error
logFile: /foo/bar/baz.log
dataPath: /var/lib/toymanifest
port: 8080
metrics: 2222
storeType: memory
partitionHorizon: 4
chunkSize: 65536
importPath: /var/lib/toymanifest/import
serverTlsConfig:
  cert: /certs/cert.pem
  key: /certs/key.pem
  ca: /certs/ca.pem
  clientAuth: verify
`

var expectConfig = Configuration{
	LogLevel:         "error",
	LogFile:          "/foo/bar/baz.log",
	DataPath:         "/var/lib/toymanifest",
	Port:             8080,
	Metrics:          2222,
	StoreType:        "memory",
	PartitionHorizon: 4,
	ChunkSize:        65536,
	ImportPath:       "/var/lib/toymanifest/import",
	ServerTlsConfig: ServerTlsConfig{
		Cert:       "/certs/cert.pem",
		Key:        "/certs/key.pem",
		CA:         "/certs/ca.pem",
		ClientAuth: "verify",
	},
}

// Test loading and parsing a configuration file
func TestLoadConfigFile(t *testing.T) {
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fail()
	}
	defer os.RemoveAll(td)
	cfgFile := filepath.Join(td, "testcfg.yaml")
	os.WriteFile(cfgFile, []byte(testCfg), 0700)
	if Load(cfgFile) != nil {
		t.FailNow()
	}
	if !reflect.DeepEqual(config, expectConfig) {
		t.FailNow()
	}
}

func TestLoadMissingFile(t *testing.T) {
	if Load("/this/file/does/not/exist.yaml") == nil {
		t.FailNow()
	}
}

func TestBadYaml(t *testing.T) {
	if SetConfigFromStr([]byte("port: [not a number")) == nil {
		t.FailNow()
	}
}

// test getters
func TestGetters(t *testing.T) {
	Set(expectConfig)
	if GetLogLevel() != expectConfig.LogLevel {
		t.FailNow()
	}
	if GetLogFile() != expectConfig.LogFile {
		t.FailNow()
	}
	if GetConfigFile() != expectConfig.ConfigFile {
		t.FailNow()
	}
	if GetDataPath() != expectConfig.DataPath {
		t.FailNow()
	}
	if GetPort() != expectConfig.Port {
		t.FailNow()
	}
	if GetMetrics() != expectConfig.Metrics {
		t.FailNow()
	}
	if GetStoreType() != expectConfig.StoreType {
		t.FailNow()
	}
	if GetPartitionHorizon() != expectConfig.PartitionHorizon {
		t.FailNow()
	}
	if GetChunkSize() != expectConfig.ChunkSize {
		t.FailNow()
	}
	if GetImportPath() != expectConfig.ImportPath {
		t.FailNow()
	}
	if GetServerTlsCfg() != expectConfig.ServerTlsConfig {
		t.FailNow()
	}
	if !reflect.DeepEqual(Get(), expectConfig) {
		t.FailNow()
	}
}

// Test that command line values override the file, and defaults only fill gaps
func TestMerge(t *testing.T) {
	Set(Configuration{
		LogLevel: "debug",
		Port:     9999,
	})
	fromCmdLine := FromCmdLine{
		Port: true,
	}
	parsed := Configuration{
		LogLevel:         "error",
		DataPath:         "/var/lib/toymanifest",
		Port:             8080,
		StoreType:        "bstore",
		PartitionHorizon: 12,
		ChunkSize:        1048576,
	}
	Merge(fromCmdLine, parsed)
	expect := Configuration{
		LogLevel:         "debug",
		DataPath:         "/var/lib/toymanifest",
		Port:             8080,
		StoreType:        "bstore",
		PartitionHorizon: 12,
		ChunkSize:        1048576,
	}
	if !reflect.DeepEqual(Get(), expect) {
		t.Fatalf("unexpected merged config %+v", Get())
	}
}
