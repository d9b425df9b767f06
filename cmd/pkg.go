/*
Toymanifest runs a small content addressed store of OCI image manifests and layer
blobs. Manifests are validated, de-normalized into one record per layer and kept in
weekly partitions. Layer blobs are streamed through a digester onto the file system.

Usage:

	toymanifest [global flags] command [command flags]

Global flags:

	--log-level string
		Log level: debug, info, warn or error. Defaults to 'error'.
	--log-file string
		Log to the specified file rather than the console.
	--config-file string
		A yaml file to load configuration from. Command line flags override the file.
	--data-path string
		Path for the manifest database and the layer blobs. Defaults to '/var/lib/toymanifest'.
	--store-type string
		bstore (persistent) or memory. Defaults to 'bstore'.
	--partition-horizon int
		Number of weekly partitions kept ahead of the current week. Defaults to 12.

Commands:

	serve
		Runs the server. Flags: --port, --metrics, --chunk-size, --import-path.
	partitions
		Creates the partitions for the current week and the horizon and lists all
		partitions with their record counts.
	import --path
		Validates and stores a manifest JSON file, or each .json file in a directory.
	version
		Displays the version.
*/
package main
