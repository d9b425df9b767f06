package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerTlsConfig configures TLS for the API server. If Cert and Key are empty the
// server listens on plain HTTP. ClientAuth is "none" or "verify".
type ServerTlsConfig struct {
	Cert       string `yaml:"cert"`
	Key        string `yaml:"key"`
	CA         string `yaml:"ca"`
	ClientAuth string `yaml:"clientAuth"`
}

// Configuration represents the totality of configuration knobs and dials for the server.
type Configuration struct {
	LogLevel         string          `yaml:"logLevel"`
	LogFile          string          `yaml:"logFile"`
	ConfigFile       string          `yaml:"configFile"`
	DataPath         string          `yaml:"dataPath"`
	Port             int64           `yaml:"port"`
	Metrics          int64           `yaml:"metrics"`
	StoreType        string          `yaml:"storeType"`
	PartitionHorizon int64           `yaml:"partitionHorizon"`
	ChunkSize        int64           `yaml:"chunkSize"`
	ImportPath       string          `yaml:"importPath"`
	ServerTlsConfig  ServerTlsConfig `yaml:"serverTlsConfig"`
}

// FromCmdLine has a flag for every command-line option. The parsing code
// sets the flag to true if the option was explicitly provided on the command
// line by the user.
type FromCmdLine struct {
	Command          string
	LogLevel         bool
	LogFile          bool
	ConfigFile       bool
	DataPath         bool
	Port             bool
	Metrics          bool
	StoreType        bool
	PartitionHorizon bool
	ChunkSize        bool
	ImportPath       bool
}

var config Configuration

func GetLogLevel() string {
	return config.LogLevel
}

func GetLogFile() string {
	return config.LogFile
}

func GetConfigFile() string {
	return config.ConfigFile
}

func GetDataPath() string {
	return config.DataPath
}

func GetPort() int64 {
	return config.Port
}

func GetMetrics() int64 {
	return config.Metrics
}

func GetStoreType() string {
	return config.StoreType
}

func GetPartitionHorizon() int64 {
	return config.PartitionHorizon
}

func GetChunkSize() int64 {
	return config.ChunkSize
}

func GetImportPath() string {
	return config.ImportPath
}

func GetServerTlsCfg() ServerTlsConfig {
	return config.ServerTlsConfig
}

// Load loads the passed configuration file into the configuration struct
func Load(configFile string) error {
	if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("unable to stat configuration file: %s", configFile)
	}
	if contents, err := os.ReadFile(configFile); err != nil {
		return fmt.Errorf("error reading configuration file: %s", configFile)
	} else if err := SetConfigFromStr(contents); err != nil {
		return fmt.Errorf("error parsing configuration file: %s, the error was: %s", configFile, err)
	}
	return nil
}

// Get gets the current configuration
func Get() Configuration {
	return config
}

// Set replaces the configuration with the passed configuration
func Set(cfg Configuration) {
	config = cfg
}

// SetConfigFromStr parses the yaml input and sets the configuration from it
func SetConfigFromStr(configBytes []byte) error {
	var cfg Configuration
	if err := yaml.Unmarshal(configBytes, &cfg); err != nil {
		return err
	} else {
		config = cfg
	}
	return nil
}
