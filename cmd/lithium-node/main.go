package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lithiumnet/internal/identity"
	"lithiumnet/internal/kademlia"
	"lithiumnet/internal/node"
	"lithiumnet/internal/telemetry"
)

func main() {
	bind := flag.String("bind", "127.0.0.1:0", "UDP bind address (e.g. 127.0.0.1:0 for a random port)")
	bootstrapStr := flag.String("bootstrap", "", "comma-separated bootstrap addresses host:port")
	storePath := flag.String("store", "", "path to a BoltDB file for the bootstrap address cache (empty disables it)")
	keyBits := flag.Int("keybits", identity.MinKeyBits, "RSA key size for this node's identity")
	refreshEvery := flag.Duration("refresh", 5*time.Minute, "bucket refresh interval")
	flag.Parse()

	var bootstraps []string
	if *bootstrapStr != "" {
		for _, part := range strings.Split(*bootstrapStr, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				bootstraps = append(bootstraps, part)
			}
		}
	}

	logger := telemetry.New(os.Stdout, "")

	priv, err := identity.GenerateKeyPair(*keyBits)
	if err != nil {
		log.Fatalf("generate identity key: %v", err)
	}

	n, err := node.New(node.Config{
		BindAddr:   *bind,
		Bootstraps: bootstraps,
		Logger:     logger,
		StorePath:  *storePath,
	}, priv)
	if err != nil {
		log.Fatalf("create node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		log.Fatalf("start node: %v", err)
	}
	defer n.Stop()

	go n.RunBucketRefresh(ctx, *refreshEvery)

	n.OnGossip(func(fromAddr string, payload []byte) {
		fmt.Printf("[GOSSIP] from %s: %s\n", fromAddr, payload)
	})

	fmt.Printf("Node started.\n")
	fmt.Printf("ID:   %s\n", n.NodeID())
	fmt.Printf("Addr: %s\n\n", n.LocalAddr())
	fmt.Println("Commands:")
	fmt.Println("  /say <message>     - broadcast a message to the overlay")
	fmt.Println("  /find <hex-nodeid> - run an iterative FIND_NODE lookup")
	fmt.Println("  /peers             - list routing table size")
	fmt.Println("  /quit              - exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			fmt.Println("quitting...")
			return

		case strings.HasPrefix(line, "/say "):
			msg := strings.TrimSpace(strings.TrimPrefix(line, "/say"))
			if err := n.Broadcast([]byte(msg)); err != nil {
				fmt.Printf("broadcast failed: %v\n", err)
			}

		case strings.HasPrefix(line, "/find "):
			hexID := strings.TrimSpace(strings.TrimPrefix(line, "/find"))
			target, err := identity.ParseNodeIDHex(hexID)
			if err != nil {
				fmt.Printf("bad node id: %v\n", err)
				continue
			}
			n.Lookup(target).
				Recursive(true).
				ExpiresAfter(10 * time.Second).
				OnSuccess(func(res kademlia.LookupResult) {
					fmt.Printf("[LOOKUP] %s resolved with %d peers\n", hexID, len(res.Closest))
				}).
				OnFailure(func(err error) {
					fmt.Printf("[LOOKUP] %s failed: %v\n", hexID, err)
				}).
				Commit()

		case line == "/peers":
			fmt.Printf("routing table size: %d\n", n.RoutingTable().Size())

		default:
			fmt.Println("unknown command")
		}
	}
}
