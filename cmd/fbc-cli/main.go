package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/0xRadioAc7iv/go-filebacked/client"
	"github.com/0xRadioAc7iv/go-filebacked/internal"
	"github.com/0xRadioAc7iv/go-filebacked/internal/protocol"
	"github.com/0xRadioAc7iv/go-filebacked/internal/utils"
)

func main() {
	host := flag.String("host", internal.DEFAULT_HOST, "fbc server host")
	port := flag.Int("port", internal.DEFAULT_PORT, "fbc server port")
	timeout := flag.Duration("timeout", internal.DEFAULT_DIAL_TIMEOUT, "Dial timeout")
	flag.Parse()

	c, err := client.Connect(client.WithHost(*host), client.WithPort(*port), client.WithDialTimeout(*timeout))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	fmt.Printf("Connected to %v:%d\n", *host, *port)
	fmt.Println("Type commands. 'help' for information or 'exit' to quit.")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			// EOF on stdin ends the session; a final unterminated line still runs.
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		if line == "exit" {
			return
		}

		cmd, key, value, err := utils.SplitStringIntoCommandAndArguments(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}

		resp, err := c.Execute(cmd, key, []byte(value))
		if err != nil {
			log.Fatal(err)
		}

		printResponse(strings.ToLower(cmd), resp)
	}
}

func printResponse(cmd string, resp protocol.Response) {
	switch resp.Status {
	case protocol.StatusNil:
		fmt.Println("nil")
	case protocol.StatusError:
		fmt.Printf("(error) %s\n", resp.Body)
	default:
		if cmd != protocol.CmdList {
			fmt.Println(string(resp.Body))
			return
		}
		keys := strings.Split(string(resp.Body), "\n")
		fmt.Println("--------- KEYS ---------")
		for i, key := range keys {
			fmt.Printf("%d) %s\n", i+1, key)
		}
		fmt.Println("------------------------")
	}
}
