package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dkeye/Hotseat/internal/adapters/obs"
	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/rs/zerolog/log"
)

// console runs operator commands typed on stdin.
type console struct {
	orch *orch.Orchestrator
	obs  *obs.Client
	stop context.CancelFunc
	out  io.Writer
}

func (c *console) run(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !c.exec(ctx, sc.Text()) {
			return
		}
	}
}

// exec runs one command line; false means the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "status":
		raw, err := json.MarshalIndent(c.orch.Status(), "", "  ")
		if err != nil {
			fmt.Fprintln(c.out, "status:", err)
			break
		}
		fmt.Fprintln(c.out, string(raw))
	case "start":
		c.orch.Start()
		fmt.Fprintln(c.out, "serving started")
	case "pause":
		c.orch.Pause()
		fmt.Fprintln(c.out, "serving paused")
	case "sync":
		if err := c.orch.Line.SyncLine(ctx); err != nil {
			fmt.Fprintln(c.out, "sync:", err)
			break
		}
		fmt.Fprintf(c.out, "line: %v\n", c.orch.Line.Snapshot().Line)
	case "peek":
		pid, err := c.orch.Line.PeekNext(ctx)
		if err != nil {
			fmt.Fprintln(c.out, "peek:", err)
			break
		}
		fmt.Fprintf(c.out, "line peeked = %s\n", pid)
	case "obs":
		c.execOBS(ctx, fields[1:])
	case "exit", "quit":
		log.Info().Str("module", "console").Msg("exit requested")
		c.stop()
		return false
	default:
		fmt.Fprintln(c.out, "commands: status, start, pause, sync, peek, obs reset|start|stop, exit")
	}
	return true
}

func (c *console) execOBS(ctx context.Context, args []string) {
	if c.obs == nil {
		fmt.Fprintln(c.out, "obs is not enabled")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(c.out, "obs: reset, start or stop")
		return
	}
	var err error
	switch args[0] {
	case "reset":
		c.obs.Reset()
	case "start":
		err = c.obs.StartRecording(ctx, "manual_"+time.Now().Format("20060102-150405"))
	case "stop":
		err = c.obs.StopRecording(ctx)
	default:
		fmt.Fprintln(c.out, "obs: reset, start or stop")
		return
	}
	if err != nil {
		fmt.Fprintln(c.out, "obs:", err)
		return
	}
	fmt.Fprintln(c.out, "obs", args[0], "ok")
}
