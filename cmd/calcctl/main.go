package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virdis/calcwire/internal/calc"
	"github.com/virdis/calcwire/internal/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: calcctl [-addr host:port] [-timeout duration] <add|sub|mul> <a> <b>\n")
	flag.PrintDefaults()
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "calc service address")
	timeout := flag.Duration("timeout", 5*time.Second, "dial timeout")
	flag.Usage = usage
	flag.Parse()

	logging.ConfigureRuntime()

	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}
	value, err := run(*addr, *timeout, flag.Arg(0), flag.Arg(1), flag.Arg(2))
	if err != nil {
		log.Error().Err(err).Msg("exchange failed")
		os.Exit(1)
	}
	fmt.Printf("%d\n", value)
}

func run(addr string, timeout time.Duration, op, rawA, rawB string) (uint64, error) {
	a, err := strconv.ParseUint(rawA, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("operand %q: %w", rawA, err)
	}
	b, err := strconv.ParseUint(rawB, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("operand %q: %w", rawB, err)
	}

	var call func(c *calc.Client) (uint64, error)
	switch op {
	case "add", "+":
		call = func(c *calc.Client) (uint64, error) { return c.Add(a, b) }
	case "sub", "-":
		call = func(c *calc.Client) (uint64, error) { return c.Subtract(a, b) }
	case "mul", "x", "*":
		call = func(c *calc.Client) (uint64, error) { return c.Multiply(a, b) }
	default:
		return 0, fmt.Errorf("unknown operation %q (expected add, sub, or mul)", op)
	}

	c, err := calc.Dial(calc.ClientConfig{Address: addr, ConnectTimeout: timeout})
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return call(c)
}
