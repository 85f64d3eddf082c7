// Command taskmasterd is the supervisor entry point: <program> <config_file>
// (spec.md §6 CLI surface).
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bkasymov/taskmaster-v4/internal/config"
	"github.com/bkasymov/taskmaster-v4/internal/control"
	"github.com/bkasymov/taskmaster-v4/internal/logx"
	"github.com/bkasymov/taskmaster-v4/internal/metrics"
	"github.com/bkasymov/taskmaster-v4/internal/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: taskmasterd <config_file>")
		return 1
	}
	configPath := args[0]

	logger := logx.New(os.Stderr)

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}

	sup := supervisor.New(configPath, cfg, logger)
	adapter := control.New(sup)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	sup.Manager.Subscribe(collector.Observe)

	if addr := os.Getenv("TASKMASTERD_HTTP_ADDR"); addr != "" {
		srv := control.NewHTTPServer(addr, adapter, reg)
		go func() {
			logger.Info("http control surface listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("http control surface stopped", "error", err)
			}
		}()
	}

	if err := sup.Start(); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		return 1
	}

	runShell(adapter, logger)

	sup.Wait()
	return 0
}

// runShell drives the interactive command source from stdin, mirroring
// the original control_shell.py command set (spec.md §6).
func runShell(adapter *control.Adapter, logger logx.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("taskmaster> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			dispatch(adapter, logger, line)
		}
		if line == "quit" || line == "exit" {
			return
		}
		fmt.Print("taskmaster> ")
	}
}

func dispatch(adapter *control.Adapter, logger logx.Logger, line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "status":
		printStatus(adapter, arg)
	case "start":
		if arg == "" {
			fmt.Println("usage: start <program>|all")
			return
		}
		if err := adapter.Start(arg); err != nil {
			fmt.Println("error:", err)
		}
	case "stop":
		if arg == "" {
			fmt.Println("usage: stop <program>|all")
			return
		}
		if err := adapter.Stop(arg); err != nil {
			fmt.Println("error:", err)
		}
	case "restart":
		if arg == "" {
			fmt.Println("usage: restart <program>|all")
			return
		}
		if err := adapter.Restart(arg); err != nil {
			fmt.Println("error:", err)
		}
	case "reload":
		adapter.Reload()
	case "quit", "exit":
		adapter.Quit()
	default:
		fmt.Println("unknown command:", cmd)
	}
}

func printStatus(adapter *control.Adapter, name string) {
	if name == "" {
		snap := adapter.Status()
		for program, views := range snap {
			for _, v := range views {
				fmt.Printf("%-20s pid=%-8d status=%-9s restarts=%-3d uptime=%s\n",
					program, v.PID, v.Status, v.Restarts, v.Uptime)
			}
		}
		return
	}
	views, err := adapter.StatusOne(name)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, v := range views {
		fmt.Printf("%-20s pid=%-8d status=%-9s restarts=%-3d uptime=%s\n",
			name, v.PID, v.Status, v.Restarts, v.Uptime)
	}
}
