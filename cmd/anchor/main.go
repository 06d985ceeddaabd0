// Command anchor runs the Set Chain Anchor Service: a daemon that pulls
// pending batch commitments from an off-chain sequencer and anchors them
// on L2 through a registry contract. Wiring follows the teacher's cmd
// entrypoints: urfave/cli for flags, turbo/logging-style setup, and the
// anchor control loop plus HTTP health surface run as sibling tasks under
// an errgroup (spec §5's three-task scheduling model).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/stateset/anchor/anchor"
	"github.com/stateset/anchor/breaker"
	"github.com/stateset/anchor/client"
	"github.com/stateset/anchor/config"
	"github.com/stateset/anchor/health"
	"github.com/stateset/anchor/logging"
	"github.com/stateset/anchor/metrics"
	"github.com/stateset/anchor/stats"
)

func main() {
	app := &cli.App{
		Name:  "anchor",
		Usage: "anchors sequencer batch commitments onto L2 via the set registry contract",
		Flags: append(config.Flags(),
			&cli.BoolFlag{Name: "log-json", EnvVars: []string{"LOG_JSON"}},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Value: "info"},
		),
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "reconcile",
				Usage: "checks whether submitted-but-unconfirmed transactions actually landed on-chain as BatchCommitted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "l2-rpc-url", EnvVars: []string{"L2_RPC_URL"}, Value: "http://localhost:8547"},
					&cli.StringSliceFlag{Name: "tx", Usage: "transaction hash to check (repeatable)", Required: true},
				},
				Action: reconcile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// reconcile is the `anchor reconcile` operator subcommand: given a list of
// transaction hashes, it reports which ones have a mined receipt and which
// of those receipts actually carry a BatchCommitted log (see
// client.BatchHeaderRange).
func reconcile(c *cli.Context) error {
	rawHashes := c.StringSlice("tx")
	hashes := make([]common.Hash, len(rawHashes))
	for i, h := range rawHashes {
		trimmed := strings.TrimPrefix(h, "0x")
		if len(trimmed) != 64 {
			return fmt.Errorf("invalid transaction hash %q: want 32 bytes hex-encoded", h)
		}
		hashes[i] = common.HexToHash(h)
	}

	ec, err := ethclient.DialContext(c.Context, c.String("l2-rpc-url"))
	if err != nil {
		return fmt.Errorf("dialing l2 rpc: %w", err)
	}
	defer ec.Close()

	results, err := client.BatchHeaderRange(c.Context, ec, hashes)
	for _, h := range hashes {
		res, found := results[h]
		switch {
		case !found:
			fmt.Printf("%s: not found\n", h.Hex())
		case res.Confirmed:
			fmt.Printf("%s: confirmed (block %d)\n", h.Hex(), res.Receipt.BlockNumber.Uint64())
		default:
			fmt.Printf("%s: mined but no BatchCommitted log\n", h.Hex())
		}
	}
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

func run(c *cli.Context) error {
	logLevel, lErr := log.LvlFromString(c.String("log-level"))
	if lErr != nil {
		logLevel = log.LvlInfo
	}
	logger := logging.Setup(logging.Config{
		ConsoleLevel: logLevel,
		ConsoleJSON:  c.Bool("log-json"),
		FilePrefix:   "anchor",
	})

	cfg, err := config.FromContext(c)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	registry, err := client.Dial(ctx, cfg.L2RPCURL, cfg.SetRegistryAddress, cfg.SequencerPrivateKey)
	if err != nil {
		logger.Error("failed to connect to L2 RPC", "err", err)
		return err
	}

	sequencer := client.NewSequencerAPIClientWithTimeouts(cfg.SequencerAPIURL, cfg.SequencerRequestTimeout, cfg.SequencerConnectTimeout)

	st := stats.New()
	state := health.NewState(st)
	b := breaker.New(cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerResetTimeout, cfg.CircuitBreakerHalfOpenSuccessThreshold)
	m := metrics.New()

	svc := anchor.New(cfg, registry, sequencer, st, b, state, logger)
	if err := svc.Startup(ctx); err != nil {
		logger.Error("anchor service failed to start", "err", err)
		return err
	}

	healthServer := health.NewServer(state, m, b, cfg.HealthPort)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Run(gCtx)
	})

	g.Go(func() error {
		srv := &http.Server{Addr: healthServer.Addr(), Handler: healthServer.Router()}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		case <-gCtx.Done():
			return srv.Close()
		}
	})

	g.Go(func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		defer signal.Stop(signals)

		select {
		case <-signals:
			logger.Info("received interrupt, shutting down")
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("anchor service exited with error", "err", err)
		return err
	}

	logger.Info("anchor service exited cleanly")
	return nil
}
