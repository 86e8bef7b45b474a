// kvcache-cli is an interactive client for kvcache-server.
//
// Typed lines are sent to the server as they are, so "set k v expires 10"
// works just like it does over telnet. With arguments it sends one request
// and exits; with --script it runs a Lua file whose kv.call goes to the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	rediscache "github.com/raniellyferreira/redis-inmemory-cache"
	"github.com/raniellyferreira/redis-inmemory-cache/client"
	"github.com/raniellyferreira/redis-inmemory-cache/lua"
)

const historyFile = ".kvcache_history"

var (
	hostFlag = &cli.StringFlag{
		Name:  "host",
		Usage: "server host",
		Value: "localhost",
	}
	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: "server port",
		Value: 6379,
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "per-request timeout",
		Value: 10 * time.Second,
	}
	scriptFlag = &cli.StringFlag{
		Name:  "script",
		Usage: "run a Lua script; remaining arguments become ARGV",
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "disable coloured output",
	}
)

func main() {
	app := &cli.App{
		Name:      "kvcache-cli",
		Usage:     "talk to a kvcache server",
		Version:   rediscache.VersionString(),
		ArgsUsage: "[command [args...]]",
		Flags: []cli.Flag{
			hostFlag,
			portFlag,
			timeoutFlag,
			scriptFlag,
			noColorFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if ctx.Bool(noColorFlag.Name) || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	addr := net.JoinHostPort(ctx.String(hostFlag.Name), strconv.Itoa(ctx.Int(portFlag.Name)))
	c, err := client.Dial(ctx.Context, addr, client.WithTimeout(ctx.Duration(timeoutFlag.Name)))
	if err != nil {
		return err
	}
	defer c.Close()

	switch {
	case ctx.String(scriptFlag.Name) != "":
		return runScript(ctx.Context, c, ctx.String(scriptFlag.Name), ctx.Args().Slice())
	case ctx.Args().Present():
		reply, err := c.Do(ctx.Context, ctx.Args().Slice()...)
		if err != nil && !isRemote(err) {
			return err
		}
		fmt.Println(formatReply(reply))
		return nil
	default:
		return repl(ctx.Context, c, addr)
	}
}

func runScript(ctx context.Context, c *client.Client, path string, args []string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := lua.NewEngine(c).Eval(ctx, string(script), nil, args)
	if err != nil {
		return err
	}
	fmt.Println(formatResult(result))
	return nil
}

// repl reads lines with history and editing until EOF, Ctrl-C or EXIT
func repl(ctx context.Context, c *client.Client, addr string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	prompt := addr + "> "
	for {
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		reply, err := c.Line(ctx, input)
		if err != nil && !isRemote(err) {
			return err
		}
		fmt.Println(formatReply(reply))

		if strings.EqualFold(strings.Fields(input)[0], "exit") {
			return nil
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

func isRemote(err error) bool {
	var remote *client.RemoteError
	return errors.As(err, &remote)
}
