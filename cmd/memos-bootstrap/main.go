package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/cmd/cli"
)

func main() {
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.CommandFor().ExecuteContext(ctx)
	stop()
	cmd.CheckErr(err)
}
