// Copyright 2026 The Poolvote Authors
// This file is part of Poolvote.
//
// Poolvote is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Poolvote is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Poolvote. If not, see <http://www.gnu.org/licenses/>.

// poolvote runs scripted deposit-and-vote scenarios against an in-memory
// checkpoint ledger and rollup engine, optionally persisting state between
// runs.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var (
	scenarioFlag = cli.StringFlag{
		Name:     "scenario",
		Usage:    "TOML scenario file to execute",
		Required: true,
	}
	datadirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for persisted state; state is loaded before the run and saved after",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level: crit, error, warn, info, debug, trace",
		Value: "info",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address while the run executes",
	}
)

var simulateCommand = cli.Command{
	Action: runSimulate,
	Name:   "simulate",
	Usage:  "Execute a scenario of issue/redeem/transfer/express/cast events",
	Flags: []cli.Flag{
		&scenarioFlag,
		&datadirFlag,
		&verbosityFlag,
		&metricsAddrFlag,
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "poolvote"
	app.Usage = "checkpointed balance histories and fractional vote rollups"
	app.Commands = []*cli.Command{
		&simulateCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(cliCtx *cli.Context) (log.Logger, error) {
	lvl, err := log.LvlFromString(cliCtx.String(verbosityFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("parse verbosity: %w", err)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
	return log.New("app", "poolvote"), nil
}

func serveMetrics(addr string, logger log.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
}
