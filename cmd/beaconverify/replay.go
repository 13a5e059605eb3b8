package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kevinms/leakybucket-go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain"
	chaintesting "github.com/voyager-chain/beaconverify/beacon-chain/blockchain/testing"
	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/beacon-chain/cache"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition/simpletransition"
	kvstore "github.com/voyager-chain/beaconverify/beacon-chain/db/kv"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/bls"
)

// rateLimiterKey is the single bucket every replayed block draws from; the
// harness only ever simulates a single peer's worth of traffic.
const rateLimiterKey = "beaconverify-replay"

func replay(ctx *cli.Context) error {
	genesisBlock := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot: 0,
		Body: &blocks.BeaconBlockBody{},
	}}
	genesisRoot, err := genesisBlock.Block.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "could not compute genesis root")
	}
	log.WithField("genesisRoot", genesisRoot).Info("derived genesis root; blocks must chain from it")

	store, closeStore, err := buildStore(ctx, genesisRoot, genesisBlock)
	if err != nil {
		return err
	}
	defer closeStore()

	pubkeyCache := cache.NewPubkeyCache(func(idx primitives.ValidatorIndex) (*bls.PublicKey, error) {
		return nil, errors.Errorf("no genesis validator registry loaded in this harness (index %d)", idx)
	})
	observed := cache.NewObservedBlockProducers()

	svc, err := blockchain.NewService(context.Background(), &blockchain.Config{
		Clock:            chaintesting.NewSlotClock(primitives.Slot(ctx.Uint64(CurrentSlotFlag.Name))),
		ForkChoice:       chaintesting.NewForkChoice(genesisRoot),
		Store:            store,
		Engine:           chaintesting.NewExecutionEngine(),
		Snapshots:        cache.NewSnapshotCache(),
		Transition:       simpletransition.New(),
		ProposerCache:    cache.NewProposerCache(),
		Observed:         observed,
		Pubkeys:          pubkeyCache.Get,
		ResolveProposer:  resolveProposer,
		AttResolver:      resolveAttestation,
		Spawner:          verification.GoroutineSpawner{},
		ProposerObserved: observed,
		GenesisRoot:      genesisRoot,
		GenesisTime:      time.Unix(ctx.Int64(GenesisTimeFlag.Name), 0),
	})
	if err != nil {
		return errors.Wrap(err, "could not build verification service")
	}
	if err := svc.Start(); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			log.WithError(err).Warn("error stopping service")
		}
	}()

	files, err := blockFiles(ctx.String(BlocksDirFlag.Name))
	if err != nil {
		return err
	}

	var limiter *leakybucket.Collector
	if bps := ctx.Float64(BlocksPerSecondFlag.Name); bps > 0 {
		limiter = leakybucket.NewCollector(bps, int64(bps), false /* deleteEmptyBuckets */)
	}

	viaGossip := ctx.Bool(ViaGossipFlag.Name)
	for _, path := range files {
		signed, err := loadBlock(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Error("could not load block, skipping")
			continue
		}
		if limiter != nil {
			throttle(limiter)
		}
		imported, berr := processOne(context.Background(), svc, signed, viaGossip)
		logResult(path, signed, imported, berr)
	}
	return nil
}

func processOne(ctx context.Context, svc *blockchain.Service, signed *blocks.SignedBeaconBlock, viaGossip bool) (*verification.ImportedBlock, *verification.BlockError) {
	if viaGossip {
		return svc.ReceiveBlockGossip(ctx, signed)
	}
	return svc.ProcessBlock(ctx, signed, false)
}

func logResult(path string, signed *blocks.SignedBeaconBlock, imported *verification.ImportedBlock, berr *verification.BlockError) {
	entry := log.WithField("path", path).WithField("slot", signed.Block.Slot)
	if berr != nil {
		entry.WithField("reason", berr.Kind).Warn("block rejected")
		return
	}
	entry.WithField("root", imported.Root).Info("block imported")
}

func throttle(limiter *leakybucket.Collector) {
	if limiter.Remaining(rateLimiterKey) < 1 {
		time.Sleep(limiter.TillEmpty(rateLimiterKey))
	}
	limiter.Add(rateLimiterKey, 1)
}

func buildStore(ctx *cli.Context, genesisRoot primitives.Root, genesisBlock *blocks.SignedBeaconBlock) (verification.Store, func(), error) {
	dbDir := ctx.String(DBDirFlag.Name)
	if dbDir == "" {
		store := chaintesting.NewStore()
		store.SaveBlock(genesisRoot, genesisBlock)
		store.SaveState(genesisRoot, chaintesting.NewBeaconState(0))
		return store, func() {}, nil
	}

	store, err := kvstore.NewKVStore(dbDir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open on-disk store")
	}
	bgCtx := context.Background()
	if exists, err := store.BlockExists(bgCtx, genesisRoot); err != nil {
		_ = store.Close()
		return nil, nil, err
	} else if !exists {
		if err := store.SaveBlock(bgCtx, genesisRoot, genesisBlock); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if err := store.SaveState(bgCtx, genesisRoot, chaintesting.NewBeaconState(0)); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
	}
	return store, func() { _ = store.Close() }, nil
}

func blockFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "could not read blocks directory")
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func loadBlock(path string) (*blocks.SignedBeaconBlock, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var signed blocks.SignedBeaconBlock
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}

// resolveProposer always assigns slot's proposer to validator 0: the real
// shuffling algorithm is a state-transition collaborator concern this
// harness does not model.
func resolveProposer(st interface{ CurrentEpoch() primitives.Epoch }, slot primitives.Slot) (primitives.ValidatorIndex, error) {
	return 0, nil
}

// resolveAttestation turns a committee-relative Attestation into an
// IndexedAttestation without actually resolving the committee: this harness
// has no validator registry to resolve aggregation bits against, so the
// attesting-indices list is left empty.
func resolveAttestation(a *blocks.Attestation) (*blocks.IndexedAttestation, error) {
	return &blocks.IndexedAttestation{
		Data:      a.Data,
		Signature: a.Signature,
	}, nil
}
