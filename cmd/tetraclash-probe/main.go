package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

// Probe client: dials the server, sends the commands given on the command
// line (or stdin when none) and prints every reply line. Useful as a liveness
// check and for poking at a running server by hand.
func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "server address")
	timeout := flag.Duration("timeout", 5*time.Second, "dial/read timeout")
	wait := flag.Duration("wait", 2*time.Second, "how long to wait for pushes after the last command")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()
	log.Printf("connected to %s", *addr)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Printf("<< %s\n", scanner.Text())
		}
	}()

	send := func(line string) {
		fmt.Printf(">> %s\n", line)
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			log.Fatalf("write: %v", err)
		}
	}

	if flag.NArg() > 0 {
		for _, line := range flag.Args() {
			send(line)
			time.Sleep(100 * time.Millisecond)
		}
	} else {
		stdin := bufio.NewScanner(os.Stdin)
		for stdin.Scan() {
			send(stdin.Text())
		}
	}

	time.Sleep(*wait)
}
