package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/config"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

const readTimeout = 2 * time.Second

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := &config.AppConfig{
		StoreBackend: "memory",
		PairInterval: 50 * time.Millisecond,
		MaxLineBytes: 64 * 1024,
	}
	srv := New(cfg, store.NewMemory())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Serve(ctx, ln) }()

	return srv, ln.Addr().String()
}

type testClient struct {
	t  *testing.T
	nc net.Conn
	br *bufio.Reader
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = nc.Close() })
	return &testClient{t: t, nc: nc, br: bufio.NewReader(nc)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.nc, "%s\n", line); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) readLine() string {
	c.t.Helper()
	_ = c.nc.SetReadDeadline(time.Now().Add(readTimeout))
	line, err := c.br.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	if got := c.readLine(); got != want {
		c.t.Fatalf("expected %q, got %q", want, got)
	}
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	got := c.readLine()
	if !strings.HasPrefix(got, prefix) {
		c.t.Fatalf("expected prefix %q, got %q", prefix, got)
	}
	return got
}

// createAndLogin provisions a fresh account over the wire; create logs the
// connection straight in.
func (c *testClient) createAndLogin(name string) {
	c.t.Helper()
	c.send(fmt.Sprintf("create:%s:hash-%s:salt-%s", name, name, name))
	c.expect("Success:1000")
}

// pairUp queues both clients in order, so a is the first participant.
func pairUp(t *testing.T, a, b *testClient) string {
	t.Helper()
	a.send("search")
	a.expect("Queue")
	b.send("search")
	b.expect("Queue")

	la := a.expectPrefix("MATCH_FOUND:")
	lb := b.expectPrefix("MATCH_FOUND:")
	ida := strings.Split(la, ":")[1]
	idb := strings.Split(lb, ":")[1]
	if ida != idb {
		t.Fatalf("match id mismatch: %q vs %q", la, lb)
	}
	return ida
}

func TestCreateAccountOverWire(t *testing.T) {
	_, addr := startServer(t)

	c1 := dialClient(t, addr)
	c1.send("create:alice:h1:s1")
	c1.expect("Success:1000")

	// Same name from another connection is rejected.
	c2 := dialClient(t, addr)
	c2.send("create:alice:h2:s2")
	c2.expect("Player Exists")
}

func TestSaltAndLoginFlow(t *testing.T) {
	_, addr := startServer(t)

	c1 := dialClient(t, addr)
	c1.createAndLogin("alice")

	c2 := dialClient(t, addr)
	c2.send("salt:alice")
	c2.expect("salt-alice")

	c2.send("salt:ghost")
	c2.expect("Username")

	c2.send("login:alice:wrong")
	c2.expect("Password")

	// alice is still bound to c1, so a correct second login is refused.
	c2.send("login:alice:hash-alice")
	c2.expect("Logged In")

	c2.send("create:bob:h:s")
	c2.expect("Success:1000")
}

func TestMalformedAndUnknownLines(t *testing.T) {
	_, addr := startServer(t)

	c := dialClient(t, addr)
	c.send("login:alice")
	c.expect("Invalid message format.")
	c.send("frobnicate:1")
	c.expect("Unknown Message")
}

func TestFullMatchLifecycle(t *testing.T) {
	_, addr := startServer(t)

	a := dialClient(t, addr)
	b := dialClient(t, addr)
	a.createAndLogin("alice")
	b.createAndLogin("bob")

	id := pairUp(t, a, b)

	// Grid state relays verbatim to the opponent only.
	a.send(fmt.Sprintf(`grid:%s:{"cells":[1,2,3]}`, id))
	b.expect(`GRID_UPDATE:{"cells":[1,2,3]}`)

	// Scores 10 vs 7: alice wins, equal ratings give delta 30.
	a.send("time:10")
	b.send("time:7")
	a.expect("MATCH_WIN:30")
	b.expect("MATCH_LOSE:30")

	// Both final scores landed on the leaderboards.
	a.send("highscores:alice")
	raw := a.readLine()
	var entries []store.HighscoreEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("highscores reply not JSON: %q %v", raw, err)
	}
	if len(entries) != 1 || entries[0].Score != 10 {
		t.Fatalf("winner leaderboard wrong: %v", entries)
	}

	b.send("highscores:bob")
	raw = b.readLine()
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("highscores reply not JSON: %q %v", raw, err)
	}
	if len(entries) != 1 || entries[0].Score != 7 {
		t.Fatalf("loser leaderboard wrong: %v", entries)
	}
}

func TestTieDesignatesLongerWaitingPlayer(t *testing.T) {
	_, addr := startServer(t)

	a := dialClient(t, addr)
	b := dialClient(t, addr)
	a.createAndLogin("alice")
	b.createAndLogin("bob")
	pairUp(t, a, b)

	a.send("score:5")
	b.send("score:5")
	a.expect("MATCH_TIE_WIN:0")
	b.expect("MATCH_TIE_LOSE:0")
}

func TestLoseForfeitsAndRecordsScore(t *testing.T) {
	_, addr := startServer(t)

	a := dialClient(t, addr)
	b := dialClient(t, addr)
	a.createAndLogin("alice")
	b.createAndLogin("bob")
	pairUp(t, a, b)

	b.send("lose:17")
	a.expect("MATCH_WIN:30")
	b.expect("MATCH_LOSE:30")

	// Duplicate lose after resolution is dropped silently; the session can
	// queue again instead.
	b.send("lose")
	b.send("search")
	b.expect("Queue")

	b.send("highscores:bob")
	raw := b.readLine()
	var entries []store.HighscoreEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("highscores reply not JSON: %q %v", raw, err)
	}
	if len(entries) != 1 || entries[0].Score != 17 {
		t.Fatalf("forfeit score not recorded: %v", entries)
	}
}

func TestDisconnectForfeitsActiveMatch(t *testing.T) {
	srv, addr := startServer(t)

	a := dialClient(t, addr)
	b := dialClient(t, addr)
	a.createAndLogin("alice")
	b.createAndLogin("bob")
	pairUp(t, a, b)

	_ = b.nc.Close()
	a.expect("MATCH_WIN:30")

	deadline := time.Now().Add(2 * time.Second)
	for srv.Index().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("match not cleared after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := srv.Registry().Lookup("bob"); err == nil {
		t.Fatalf("disconnected session still registered")
	}
}

func TestDisconnectWhileQueuedCancelsSearch(t *testing.T) {
	srv, addr := startServer(t)

	a := dialClient(t, addr)
	a.createAndLogin("alice")
	a.send("search")
	a.expect("Queue")
	_ = a.nc.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Queue().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("queue entry survived disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCancelSearchOverWire(t *testing.T) {
	srv, addr := startServer(t)

	a := dialClient(t, addr)
	a.createAndLogin("alice")
	a.send("search")
	a.expect("Queue")
	a.send("cancel:alice")
	a.expect("Success")

	if srv.Queue().Len() != 0 {
		t.Fatalf("cancel left the search queued")
	}
}
