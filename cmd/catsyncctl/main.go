package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/catsync/catsync/cmd/catsyncctl/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("catsyncctl", flag.ContinueOnError)
	redisAddr := fs.String("redis", "127.0.0.1:6379", "redis address")
	operation := fs.String("op", "upsert", "import operation for enqueue (add, update, upsert)")
	store := fs.String("store", "", "store id or code for enqueue")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	args := fs.Args()
	if len(args) == 0 {
		usage(fs)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsCLI, err := cli.NewJobsCLI(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "prune-logs":
		info, err := jobsCLI.TriggerLogPrune(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
	case "enqueue":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "enqueue needs a payload file")
			return 2
		}
		info, err := jobsCLI.EnqueueImportFile(ctx, uuid.NewString(), *operation, *store, args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 20)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, t := range tasks {
			fmt.Printf("%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt)
		}
	default:
		usage(fs)
		return 2
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: catsyncctl [flags] <prune-logs|enqueue <file>|stats|scheduled>")
	fs.PrintDefaults()
}
