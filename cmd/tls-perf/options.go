package main

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/aagor/tls-perf/common"
)

// errHelp asks the caller to print usage and exit 0.
var errHelp = errors.New("help requested")

func parseOptions(args []string) (common.Config, error) {
	cfg := common.Config{
		Peers:   common.DefaultPeers,
		Workers: common.DefaultWorkers,
		Version: common.TLS12,
	}

	fs := pflag.NewFlagSet("tls-perf", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	var (
		help    = fs.BoolP("help", "h", false, "print this help and exit")
		debug   = fs.BoolP("debug", "d", false, "run in debug mode")
		peers   = fs.IntP("peers", "l", common.DefaultPeers, "limit of parallel connections for each thread")
		workers = fs.IntP("threads", "t", common.DefaultWorkers, "number of threads")
		hsCap   = fs.Uint64P("handshakes", "n", common.UnboundedHandshakes, "total number of handshakes to establish")
		timeout = fs.IntP("to", "T", 0, "duration of the test (in seconds)")
		cipher  = fs.StringP("cipher", "c", "", "force cipher choice, or 'any'")
		vers    = fs.String("tls", "1.2", "TLS version for the handshake: '1.2', '1.3' or 'any'")
		tickets = fs.Bool("use-tickets", false, "enable TLS session tickets")
		output  = fs.StringP("output", "o", "", "write the final summary as JSON to this file")
		metrics = fs.String("metrics-addr", "", "serve live counters for Prometheus on this address")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cfg, errHelp
		}
		return cfg, err
	}
	if *help {
		return cfg, errHelp
	}

	if *workers > common.MaxWorkers {
		return cfg, fmt.Errorf("too many threads requested")
	}

	cfg.Peers = *peers
	cfg.Workers = *workers
	cfg.Handshakes = *hsCap
	cfg.Timeout = common.Duration(time.Duration(*timeout) * time.Second)
	cfg.UseTickets = *tickets
	cfg.Debug = *debug
	cfg.OutputFile = *output
	cfg.MetricsAddr = *metrics

	switch *vers {
	case "1.2":
		cfg.Version = common.TLS12
	case "1.3":
		cfg.Version = common.TLS13
	case "any":
		cfg.Version = common.TLSAny
	default:
		fmt.Println("Unknown TLS version, fallback to 1.2")
		cfg.Version = common.TLS12
	}

	switch *cipher {
	case "any":
		cfg.Cipher = ""
	case "":
		if cfg.Version == common.TLS13 {
			cfg.Cipher = common.DefaultCipher13
		} else {
			cfg.Cipher = common.DefaultCipher12
		}
	default:
		cfg.Cipher = *cipher
	}

	var err error
	switch rest := fs.Args(); len(rest) {
	case 0:
		cfg.Peer = netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 443)
	case 2:
		cfg.Peer, err = parseEndpoint(rest[0], rest[1])
		if err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("either 0 or 2 arguments are allowed: none for defaults or address and port")
	}

	return cfg, cfg.Validate()
}

func parseEndpoint(host, port string) (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("can't parse ip address from string %q", host)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("can't parse port from string %q", port)
	}
	return netip.AddrPortFrom(addr, uint16(p)), nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `
./tls-perf [options] <ip> <port>
  -h, --help           Print this help and exit
  -d, --debug          Run in debug mode
  -l <N>               Limit parallel connections for each thread (default: %d)
  -n <N>               Total number of handshakes to establish
  -t <N>               Number of threads (default: %d)
  -T, --to <N>         Duration of the test (in seconds)
  -c <cipher>          Force cipher choice (default for TLSv1.2: %s,
                       for TLSv1.3: %s), or type 'any' to disable
                       ciphersuite restrictions
  --tls <version>      Set TLS version for handshake: '1.2', '1.3' or 'any'
                       for both (default: '1.2')
  --use-tickets        Enable TLS session tickets (default: disabled)
  -o <file>            Write the final summary as JSON to <file>
  --metrics-addr <a>   Serve live counters for Prometheus on <a>

127.0.0.1:443 address is used by default.

To list available ciphers run command:
$ nmap --script ssl-enum-ciphers -p <PORT> <IP>

`, common.DefaultPeers, common.DefaultWorkers, common.DefaultCipher12, common.DefaultCipher13)
}
