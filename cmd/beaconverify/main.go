// Command beaconverify drives the block verification pipeline over a
// directory of JSON-encoded signed beacon blocks, for manually exercising
// the pipeline without a full beacon node around it.
package main

import (
	"fmt"
	"os"
	"runtime"
	runtimeDebug "runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/voyager-chain/beaconverify/shared/featureconfig"
)

const appVersion = "0.1.0"

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	BlocksDirFlag,
	DBDirFlag,
	ViaGossipFlag,
	CurrentSlotFlag,
	GenesisTimeFlag,
	BlocksPerSecondFlag,
	VerbosityFlag,
	WriteBlockProcessingSSZFlag,
	SSZDumpDirFlag,
}

func main() {
	app := &cli.App{}
	app.Name = "beaconverify"
	app.Usage = "replay a directory of signed beacon blocks through the verification pipeline"
	app.Version = appVersion
	app.Flags = appFlags
	app.Action = replay

	app.Before = func(ctx *cli.Context) error {
		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)

		level, err := logrus.ParseLevel(ctx.String(VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		featureconfig.Init(&featureconfig.Flags{
			WriteBlockProcessingSSZ: ctx.Bool(WriteBlockProcessingSSZFlag.Name),
			SSZDumpDir:              ctx.String(SSZDumpDirFlag.Name),
		})
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, runtimeDebug.Stack())
			os.Exit(1)
		}
	}()
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("beaconverify exited with an error")
	}
}
