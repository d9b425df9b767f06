/*
Package importer loads manifest JSON files into the store. It can import a single
file or a directory of files once (the 'import' sub-command), or it can run a file
system notifier on a drop directory (the '--import-path' arg of the 'serve'
sub-command). Whenever a '.json' file is placed in the drop directory, it is decoded,
validated and inserted just like the body of a POST /manifest. Here is the canonical
use case:

 1. Produce a manifest, e.g. with a build tool or by exporting one from a registry
 2. cp manifest.json /var/lib/toymanifest/import/
 3. The file disappears once it is stored. If it was not a valid manifest it is
    renamed to manifest.json.rejected and the reason is logged
 4. curl localhost:8080/manifest/<config digest>
*/
package importer
