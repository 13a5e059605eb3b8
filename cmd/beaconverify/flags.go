package main

import "github.com/urfave/cli/v2"

// BlocksDirFlag points at a directory of JSON-encoded signed beacon blocks,
// processed in filename order.
var BlocksDirFlag = &cli.StringFlag{
	Name:     "blocks-dir",
	Usage:    "directory of JSON-encoded signed beacon blocks to replay",
	Required: true,
}

// DBDirFlag, if set, persists imported blocks and states to a bolt database
// in this directory instead of holding them only in memory.
var DBDirFlag = &cli.StringFlag{
	Name:  "db-dir",
	Usage: "directory for the on-disk block/state store (defaults to in-memory only)",
}

// ViaGossipFlag selects whether blocks are run through the gossip path
// (disparity tolerance, proposer-signature caching) or the RPC path.
var ViaGossipFlag = &cli.BoolFlag{
	Name:  "via-gossip",
	Usage: "process blocks as gossip arrivals instead of RPC/sync arrivals",
}

// CurrentSlotFlag pins the harness's wall-clock slot, since there is no real
// genesis time to derive it from outside a full beacon node.
var CurrentSlotFlag = &cli.Uint64Flag{
	Name:  "current-slot",
	Usage: "wall-clock slot to report from the slot clock",
	Value: 1 << 16,
}

// GenesisTimeFlag sets the genesis unix timestamp reported by FinalizedCheckpt/GenesisTime.
var GenesisTimeFlag = &cli.Int64Flag{
	Name:  "genesis-time",
	Usage: "unix timestamp to report as genesis time",
}

// BlocksPerSecondFlag throttles how fast the harness feeds blocks into the
// pipeline, simulating the rate limit a real sync peer would be subject to.
// Zero (the default) disables throttling.
var BlocksPerSecondFlag = &cli.Float64Flag{
	Name:  "blocks-per-second",
	Usage: "maximum blocks fed into the pipeline per second; 0 disables throttling",
}

// VerbosityFlag sets the logrus level.
var VerbosityFlag = &cli.StringFlag{
	Name:  "verbosity",
	Usage: "logging verbosity (debug, info, warn, error)",
	Value: "info",
}

// WriteBlockProcessingSSZFlag enables per-block debug dumps as each block
// enters execution-pending.
var WriteBlockProcessingSSZFlag = &cli.BoolFlag{
	Name:  "write-block-processing-ssz",
	Usage: "dump every processed block to --ssz-dump-dir, keyed by its root",
}

// SSZDumpDirFlag is where WriteBlockProcessingSSZFlag writes its dumps.
var SSZDumpDirFlag = &cli.StringFlag{
	Name:  "ssz-dump-dir",
	Usage: "directory for block processing debug dumps (defaults to the OS temp dir)",
}
