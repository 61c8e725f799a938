// Package main implements the CLI client for the FIX gateway cluster.
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	gatewaygrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/gateway"
)

const usage = `Usage:
  client [--addr host:port[,host:port,...]] publish <session-id> <seq-no> <payload-file|->
  client [--addr host:port[,host:port,...]] publish-batch [--in <file|->]
  client [--addr host:port[,host:port,...]] admin

publish reads a raw FIX message (tag=value, SOH-delimited) from the given
file and replicates it through the cluster leader under the given
session id and sequence number.

publish-batch reads TSV lines "session_id<TAB>seq_no<TAB>base64_payload",
one per line, from the given input.

admin polls each admin gRPC endpoint and renders a live table of Raft
nodes and their FIX sessions.

Flags:
  --addr     Comma-separated gateway/admin gRPC addresses
  --timeout  Request timeout (default 5s)
`

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8080", "comma-separated gateway gRPC addresses")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("subcommand required: publish | publish-batch | admin")
	}

	addrs := splitAddrs(*addr)

	switch args[0] {
	case "publish":
		if len(args) != 4 {
			return fmt.Errorf("usage: publish <session-id> <seq-no> <payload-file|->")
		}
		sessionID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session-id %q: %w", args[1], err)
		}
		seqNo, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seq-no %q: %w", args[2], err)
		}
		payload, err := readAll(args[3])
		if err != nil {
			return err
		}

		client, err := gatewaygrpc.DialCluster(addrs, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		return cmdPublish(ctx, client, sessionID, seqNo, payload)

	case "publish-batch":
		fs := flag.NewFlagSet("publish-batch", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		inPath := fs.String("in", "-", "TSV input path (session_id<TAB>seq_no<TAB>base64_payload), use - for stdin")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("usage: publish-batch [--in <file|->]")
		}
		if fs.NArg() != 0 {
			return fmt.Errorf("usage: publish-batch [--in <file|->]")
		}
		client, err := gatewaygrpc.DialCluster(addrs, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		return cmdPublishBatch(client, *timeout, *inPath)

	case "admin":
		if len(args) != 1 {
			return fmt.Errorf("usage: admin")
		}
		return cmdAdmin(addrs, *timeout)

	default:
		flag.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func cmdPublish(ctx context.Context, c *gatewaygrpc.ClusterClient, sessionID, seqNo int64, payload []byte) error {
	err := c.Publish(ctx, sessionID, seqNo, payload)
	if errors.Is(err, gatewaygrpc.ErrNoLeader) {
		return fmt.Errorf("no leader available, cluster may be degraded")
	}
	if err != nil {
		return err
	}
	fmt.Printf("ok (session %d, seq %d)\n", sessionID, seqNo)
	return nil
}

func cmdPublishBatch(c *gatewaygrpc.ClusterClient, timeout time.Duration, inPath string) error {
	var (
		r   io.Reader = os.Stdin
		f   *os.File
		err error
	)
	if inPath != "-" {
		// #nosec G304 -- CLI intentionally reads a user-provided local input file.
		f, err = os.Open(inPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	seq := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		seq++
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			fmt.Printf("err\t%d\t0\t\tinvalid_tsv_line\n", seq)
			continue
		}
		sessionID, errID := strconv.ParseInt(fields[0], 10, 64)
		seqNo, errSeq := strconv.ParseInt(fields[1], 10, 64)
		payload, errB64 := base64.StdEncoding.DecodeString(fields[2])
		if errID != nil || errSeq != nil || errB64 != nil {
			fmt.Printf("err\t%d\t0\t\tinvalid_tsv_fields\n", seq)
			continue
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		pubErr := c.Publish(ctx, sessionID, seqNo, payload)
		cancel()
		ms := time.Since(start).Milliseconds()

		switch {
		case pubErr == nil:
			fmt.Printf("ok\t%d\t%d\t%d\t%d\n", seq, ms, sessionID, seqNo)
		case errors.Is(pubErr, context.DeadlineExceeded), status.Code(pubErr) == codes.DeadlineExceeded:
			fmt.Printf("timeout\t%d\t%d\t%d\t%s\n", seq, ms, sessionID, oneLineErr(pubErr))
		default:
			fmt.Printf("err\t%d\t%d\t%d\t%s\n", seq, ms, sessionID, oneLineErr(pubErr))
		}
	}
	return scanner.Err()
}

func readAll(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	// #nosec G304 -- CLI intentionally reads a user-provided local input file.
	return os.ReadFile(path)
}

func oneLineErr(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

func splitAddrs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
