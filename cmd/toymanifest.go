package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"toymanifest/cmd/subcmd"
	"toymanifest/impl/config"
	"toymanifest/impl/globals"

	log "github.com/sirupsen/logrus"
)

// set by the build
var (
	buildVer string
	buildDtm string
)

func main() {
	os.Exit(realMain())
}

// realMain runs the sub-command from the command line and returns the process exit
// code. Supports unit testing.
func realMain() int {
	command, err := getCfg()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}
	globals.ConfigureLogging(config.GetLogLevel(), config.GetLogFile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = subcmd.Serve(ctx, buildVer, buildDtm)
	case "partitions":
		err = subcmd.Partitions(ctx)
	case "import":
		err = subcmd.Import(ctx)
	case "version":
		fmt.Printf("toymanifest version: %s build date: %s\n", buildVer, buildDtm)
	}
	if err != nil {
		log.Error(err)
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}
	return 0
}
