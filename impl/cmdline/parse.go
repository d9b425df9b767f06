package cmdline

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"toymanifest/impl/config"

	"github.com/urfave/cli/v3"
)

// fromCmdline will be populated with flags indicating which configuration settings were
// specified on the command line.
var fromCmdline config.FromCmdLine

// cfg has the parsed configuration - including defaults (e.g. port) if the user does not override
var cfg = config.Configuration{}

// cmds is for the command line parser urfave/cli
var cmds = &cli.Command{
	Name:  "toymanifest",
	Usage: "a content addressed store of OCI image manifests and layer blobs",
	// define this or the parser terminates the program
	ExitErrHandler: func(_ context.Context, _ *cli.Command, _ error) {},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "error",
			Usage:       "Sets the minimum value for logging: debug, warn, info, or error",
			Destination: &cfg.LogLevel,
			Validator: func(lvl string) error {
				validValues := []string{"debug", "warn", "info", "error"}
				if !slices.Contains(validValues, strings.ToLower(lvl)) {
					return fmt.Errorf("must be one of %s", strings.Join(validValues, ", "))
				}
				return nil
			},
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.LogLevel = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "config-file",
			Usage:       "A file to load configuration values from (cmdline overrides file settings)",
			Destination: &cfg.ConfigFile,
			Validator:   isFile,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.ConfigFile = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "data-path",
			Value:       "/var/lib/toymanifest",
			Usage:       "The path for the manifest database and the layer blobs",
			Destination: &cfg.DataPath,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.DataPath = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "log-file",
			Value:       "",
			Usage:       "log to the specified file rather than the console",
			Destination: &cfg.LogFile,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.LogFile = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "store-type",
			Value:       "bstore",
			Usage:       "The manifest store: bstore (persistent, under the data path) or memory",
			Destination: &cfg.StoreType,
			Validator: func(st string) error {
				validValues := []string{"bstore", "memory"}
				if !slices.Contains(validValues, st) {
					return fmt.Errorf("must be one of %s", strings.Join(validValues, ", "))
				}
				return nil
			},
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.StoreType = true
				return nil
			},
		},
		&cli.IntFlag{
			Name:        "partition-horizon",
			Value:       12,
			Usage:       "The number of weekly partitions to keep created ahead of the current week",
			Destination: &cfg.PartitionHorizon,
			Validator:   notNegative,
			Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
				fromCmdline.PartitionHorizon = true
				return nil
			},
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "serve",
			Usage: "Runs the server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "serve"
				return nil
			},
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:        "port",
					Value:       8080,
					Usage:       "The port to serve on",
					Destination: &cfg.Port,
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.Port = true
						return nil
					},
				},
				&cli.IntFlag{
					Name:        "metrics",
					Value:       0,
					Usage:       "Serves prometheus metrics on the passed port. Zero disables metrics",
					Destination: &cfg.Metrics,
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.Metrics = true
						return nil
					},
				},
				&cli.IntFlag{
					Name:        "chunk-size",
					Value:       1024 * 1024,
					Usage:       "The read size in bytes when streaming layer blobs",
					Destination: &cfg.ChunkSize,
					Validator: func(n int64) error {
						if n <= 0 {
							return fmt.Errorf("must be greater than zero")
						}
						return nil
					},
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.ChunkSize = true
						return nil
					},
				},
				&cli.StringFlag{
					Name:        "import-path",
					Usage:       "Watches the passed directory and imports manifest JSON files dropped into it",
					Destination: &cfg.ImportPath,
					Validator:   isDir,
					Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
						fromCmdline.ImportPath = true
						return nil
					},
				},
			},
		},
		{
			Name:  "partitions",
			Usage: "Creates the partitions for the current week and the horizon, and lists all partitions (server should not be running)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "partitions"
				return nil
			},
		},
		{
			Name:  "import",
			Usage: "Validates and stores a manifest JSON file, or every .json file in a directory (server should not be running)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "import"
				return nil
			},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "path",
					Usage:       "The manifest file or directory of manifest files to import",
					Required:    true,
					Destination: &cfg.ImportPath,
					Validator: func(path string) error {
						if _, err := os.Stat(path); err != nil {
							return fmt.Errorf("not found")
						}
						return nil
					},
					Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
						fromCmdline.ImportPath = true
						return nil
					},
				},
			},
		},
		{
			Name:  "version",
			Usage: "Displays the version",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "version"
				return nil
			},
		},
	},
}

func isFile(path string) error {
	if fi, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found")
	} else if fi.IsDir() {
		return fmt.Errorf("not a file")
	}
	return nil
}

func isDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		return fmt.Errorf("directory not found")
	} else if !fi.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}

func notNegative(n int64) error {
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// Parse parses the command line. It returns the following:
//
//  1. A FromCmdLine struct which has the command to run ("serve", "import", etc.). If the command
//     is the empty string then no sub-command was specified in which case the parser auto-displays
//     help. This struct also has flags telling you which configuration values were provided by the
//     user on the command line.
//  2. A Configuration struct containing the parsed configuration values. For any configuration flag
//     in the FromCmdLine struct with a false value, the corresponding configuration value in *this*
//     struct will be the default.
//  3. An error, if the parser returned one, else nil.
func Parse() (config.FromCmdLine, config.Configuration, error) {
	if err := cmds.Run(context.Background(), os.Args); err != nil {
		return config.FromCmdLine{}, config.Configuration{}, err
	}
	return fromCmdline, cfg, nil
}

// ClearParse supports unit testing
func ClearParse() {
	fromCmdline = config.FromCmdLine{}
	cfg = config.Configuration{}
}
