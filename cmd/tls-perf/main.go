// tls-perf generates TLS handshake load against one endpoint and reports
// handshake throughput and latency.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/aagor/tls-perf/bench"
	"github.com/aagor/tls-perf/common"
	"github.com/aagor/tls-perf/perflib"
)

func main() {
	cfg, err := parseOptions(os.Args[1:])
	if errors.Is(err, errHelp) {
		usage(os.Stdout)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		usage(os.Stderr)
		os.Exit(2)
	}

	initLogging(cfg.Debug)
	printSettings(cfg)

	cfg.Peers = perflib.AdjustFileLimit(cfg.Peers, cfg.Workers)
	if cfg.Peers == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: cannot run with no peers")
		os.Exit(3)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)

	ct := &perflib.Counters{}
	sketch := &perflib.LatencySketch{}
	var shutdown, startStats atomic.Bool

	if cfg.MetricsAddr != "" {
		go func() {
			if err := perflib.ServeMetrics(cfg.MetricsAddr, ct); err != nil {
				glog.Errorf("metrics endpoint: %v", err)
			}
		}()
	}

	selfBefore := bench.SelfUsage()
	machineBefore := bench.MachineCPUStat()

	var wg sync.WaitGroup
	errCh := make(chan error, cfg.Workers)
	for i := 1; i <= cfg.Workers; i++ {
		w := &perflib.Worker{
			ID:         i,
			Cfg:        cfg,
			Ct:         ct,
			Sketch:     sketch,
			Shutdown:   &shutdown,
			StartStats: &startStats,
		}
		glog.V(1).Infof("spawn worker %d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(); err != nil {
				errCh <- err
				shutdown.Store(true)
			}
		}()
	}

	d := perflib.NewDriver(cfg, ct, &shutdown, &startStats)
	d.Run(sigCh)
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	sum, err := d.Summarize(sketch)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return
	}

	self := bench.SelfUsage().Sub(selfBefore)
	sum.CPUUser = self.User.Seconds()
	sum.CPUSys = self.Sys.Seconds()
	sum.Notes = bench.Interference(bench.MachineCPUStat().Sub(machineBefore), self)

	sum.Write(os.Stdout)

	if cfg.OutputFile != "" {
		if err := writeJSON(cfg.OutputFile, sum); err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			os.Exit(1)
		}
	}
}

// initLogging wires the debug flag into glog: everything to stderr, V(1)
// enables the per-peer state traces.
func initLogging(debug bool) {
	flag.CommandLine.Parse([]string{})
	flag.Set("logtostderr", "true")
	if debug {
		flag.Set("v", "1")
	}
}

func printSettings(cfg common.Config) {
	onOff := "off"
	if cfg.UseTickets {
		onOff = "on"
	}
	fmt.Printf("Running TLS benchmark with following settings:\n")
	fmt.Printf("Host:        %s : %d\n", cfg.Peer.Addr(), cfg.Peer.Port())
	fmt.Printf("TLS version: %s\n", cfg.Version)
	fmt.Printf("Cipher:      %s\n", cfg.CipherLabel())
	fmt.Printf("TLS tickets: %s\n", onOff)
	fmt.Printf("Duration:    %d\n", int(cfg.Timeout.Seconds()))
	fmt.Printf("Machine:     %s\n", bench.ReadMachineInfo())
	fmt.Println()
}

func writeJSON(path string, sum *perflib.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
