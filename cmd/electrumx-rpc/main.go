// Command electrumx-rpc sends a single administrative command to a running
// electrumx-server over its local JSON-RPC admin port and prints the reply.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type options struct {
	RPCAddr string `long:"rpc-addr" description:"Admin RPC address" default:"127.0.0.1:8000"`
	Timeout int    `long:"timeout" description:"Seconds to wait for a reply" default:"10"`
	Args    struct {
		Method string   `positional-arg-name:"method"`
		Params []string `positional-arg-name:"params"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "electrumx-rpc:", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", opts.RPCAddr, time.Duration(opts.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(time.Duration(opts.Timeout) * time.Second))

	params := make([]interface{}, len(opts.Args.Params))
	for i, p := range opts.Args.Params {
		params[i] = p
	}
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  opts.Args.Method,
		"params":  params,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return err
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal([]byte(reply), &pretty); err != nil {
		fmt.Println(reply)
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
