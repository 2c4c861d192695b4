// Command redis-cli is a thin demonstration shell around the Client
// core, grounded on the teacher's cmd/reget: a flag-parsed entry point
// that builds one Client and drives it through a single mode per
// invocation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	redis "github.com/kvclient/rediscore"
)

var (
	addrFlag = flag.String("addr", "localhost:6379", "Redis node `address`.")
	authFlag = flag.Bool("auth", false, "Reads a password from the standard input before issuing commands.")

	pipelineFlag = flag.Bool("pipeline", false, "Read newline-separated commands from the standard input and run them as one pipeline.")
	scanFlag     = flag.String("scan", "", "List keys matching `pattern` via SCAN instead of running a command.")
	subFlag      = flag.String("sub", "", "Subscribe to `channel` and print pushed messages until interrupted.")

	rawFlag = flag.Bool("raw", false, "Print bulk replies unquoted.")
)

func main() {
	flag.Parse()

	if *scanFlag == "" && *subFlag == "" && !*pipelineFlag && flag.NArg() == 0 {
		os.Stderr.WriteString(`NAME
	redis-cli — drive a Client against a single node

SYNOPSIS
	redis-cli [ options ] [ command-word ... ]

DESCRIPTION
	With no mode flag, the remaining operands are sent as one command
	and the reply is printed. -pipeline, -scan and -sub select the
	other supported modes.

	The following options are available:

`)
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := []redis.ConfigOption{redis.WithAddr(*addrFlag)}
	if *authFlag {
		password, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "redis-cli: reading password:", err)
			os.Exit(4)
		}
		authCmd, _ := redis.CoerceCommand("AUTH", strings.TrimRight(string(password), "\n"))
		opts = append(opts, redis.WithConnectionPrelude(authCmd))
	}

	client := redis.NewFromOptions(opts...)
	defer client.Close()

	switch {
	case *scanFlag != "":
		runScan(client, *scanFlag)
	case *subFlag != "":
		runSub(client, *subFlag)
	case *pipelineFlag:
		runPipeline(client)
	default:
		runCall(client, flag.Args())
	}
}

func runCall(client *redis.Client, args []string) {
	vargs := make([]any, len(args))
	for i, a := range args {
		vargs[i] = a
	}
	reply, err := client.Call(vargs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", err)
		os.Exit(255)
	}
	printReply(reply)
}

func runPipeline(client *redis.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}

	replies, err := client.Pipelined(func(p *redis.Pipeline) error {
		for _, line := range lines {
			words := strings.Fields(line)
			vargs := make([]any, len(words))
			for i, w := range words {
				vargs[i] = w
			}
			if err := p.Call(vargs...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", err)
		os.Exit(255)
	}
	for _, r := range replies {
		printReply(r)
	}
}

func runScan(client *redis.Client, pattern string) {
	err := redis.ScanEach(client, func(key string) error {
		fmt.Println(key)
		return nil
	}, "MATCH", pattern)
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", err)
		os.Exit(255)
	}
}

func runSub(client *redis.Client, channel string) {
	ps, err := client.PubSub()
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", err)
		os.Exit(255)
	}
	defer ps.Close()

	if err := ps.Call("SUBSCRIBE", channel); err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", err)
		os.Exit(255)
	}

	for {
		reply, ok, err := ps.NextEvent(30 * time.Second)
		if err != nil {
			fmt.Fprintln(os.Stderr, "redis-cli:", err)
			os.Exit(255)
		}
		if !ok {
			continue // poll timeout, nothing pushed yet
		}
		printReply(reply)
	}
}

func printReply(r redis.Reply) {
	if r.Err != nil {
		fmt.Fprintln(os.Stderr, "redis-cli:", r.Err)
		return
	}
	switch r.Type {
	case redis.ReplyOK:
		fmt.Println("OK")
	case redis.ReplyInt:
		fmt.Println(strconv.FormatInt(r.Int, 10))
	case redis.ReplyBulk:
		if r.Bulk == nil {
			fmt.Println("<null>")
		} else if *rawFlag {
			fmt.Println(string(r.Bulk))
		} else {
			fmt.Println(strconv.QuoteToGraphic(string(r.Bulk)))
		}
	case redis.ReplyArray:
		for _, e := range r.Array {
			printReply(e)
		}
	}
}
