package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"pirateisles/internal/persistence/snapshot"
	"pirateisles/internal/persistence/store"
	"pirateisles/internal/sim/world"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "players":
		playersCmd(args)
	case "player":
		playerCmd(args)
	case "remove":
		removeCmd(args)
	case "snapshot":
		snapshotCmd(args)
	case "outcomes":
		outcomesCmd(args)
	case "state":
		stateCmd(args)
	case "save":
		saveCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags] [args]

  players              list persisted players
  player <nick>        print one persisted player
  remove <nick>        delete a persisted player
  snapshot <path>      summarize a snapshot file
  outcomes             print outcome log entries
  state                fetch /admin/v1/state from a running server
  save                 ask a running server to write a snapshot`)
}

type storeFlags struct {
	dataDir *string
	dialect *string
	dsn     *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		dataDir: fs.String("data", "./data", "runtime data directory"),
		dialect: fs.String("db_dialect", "sqlite", "store dialect: sqlite|postgres (PI_DB_DIALECT overrides)"),
		dsn:     fs.String("db_dsn", "", "sqlite path or postgres URL (default: <data>/pirateisles.sqlite)"),
	}
}

func (f storeFlags) open() *store.Store {
	dsn := strings.TrimSpace(*f.dsn)
	if dsn == "" {
		dsn = filepath.Join(*f.dataDir, "pirateisles.sqlite")
	}
	st, err := store.Open(store.ConfigFromEnv(store.Config{
		Dialect:   store.Dialect(*f.dialect),
		DSN:       dsn,
		QueueSize: 16,
		Logger:    log.New(io.Discard, "", 0),
	}))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return st
}

func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	sf := addStoreFlags(fs)
	_ = fs.Parse(args)

	st := sf.open()
	defer st.Close()
	snap, err := st.Load(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	printPlayers(os.Stdout, snap.Players, time.Now())
}

func playerCmd(args []string) {
	fs := flag.NewFlagSet("player", flag.ExitOnError)
	sf := addStoreFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin player [flags] <nick>")
		os.Exit(2)
	}

	st := sf.open()
	defer st.Close()
	p, ok, err := st.LoadPlayer(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no player %q\n", fs.Arg(0))
		os.Exit(1)
	}
	if p.Base.SecretHash != "" {
		p.Base.SecretHash = "<set>"
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(p)
}

func removeCmd(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	sf := addStoreFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin remove [flags] <nick>")
		os.Exit(2)
	}

	st := sf.open()
	defer st.Close()
	ok, err := st.RemovePlayer(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "remove:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no player %q\n", fs.Arg(0))
		os.Exit(1)
	}
	fmt.Printf("removed %s\n", fs.Arg(0))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory (used when no path is given)")
	headerOnly := fs.Bool("header", false, "print only the header")
	_ = fs.Parse(args)

	path := strings.TrimSpace(fs.Arg(0))
	if path == "" {
		latest, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil || latest == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; pass a path")
			os.Exit(2)
		}
		path = latest
	}

	h, err := snapshot.ReadHeader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read header:", err)
		os.Exit(1)
	}
	fmt.Printf("%s: version=%d saved=%s players=%d\n", filepath.Base(path), h.Version,
		humanize.Time(time.UnixMilli(h.SavedAtMs)), h.Players)
	if *headerOnly {
		return
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("seed=%d nodes=%d points=%d caravans=%d\n", snap.Seed, len(snap.ResourceNodes), len(snap.CapturePoints), len(snap.Caravans))
	printPlayers(os.Stdout, snap.Players, time.Now())
}

func printPlayers(out io.Writer, players []snapshot.PlayerV1, now time.Time) {
	sort.Slice(players, func(i, j int) bool { return players[i].Base.Nick < players[j].Base.Nick })
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NICK\tLEVELS (T/D/C/I)\tBOATS\tRUM\tGOLD\tWOOD\tWIPES\tLAST SEEN")
	for _, p := range players {
		b := p.Base
		seen := "never"
		if b.LastSeenMs > 0 {
			seen = humanize.RelTime(time.UnixMilli(b.LastSeenMs), now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%d/%d/%d/%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			b.Nick, b.Tavern, b.Dock, b.Cannon, b.Island, b.Boats,
			humanize.Comma(int64(p.Resources.Rum)),
			humanize.Comma(int64(p.Resources.Gold)),
			humanize.Comma(int64(p.Resources.Wood)),
			p.Wipe.Wipes, seen)
	}
	_ = tw.Flush()
}

func outcomesCmd(args []string) {
	fs := flag.NewFlagSet("outcomes", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "only entries for this player (as actor or target)")
	kind := fs.String("kind", "", "only entries of this kind")
	limit := fs.Int("limit", 0, "print at most this many entries (0 = all)")
	_ = fs.Parse(args)

	files, err := filepath.Glob(filepath.Join(*dataDir, "outcomes", "outcomes-*.jsonl.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	sort.Strings(files)

	printed := 0
	for _, path := range files {
		entries, err := readOutcomes(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			continue
		}
		for _, e := range entries {
			if *player != "" && e.Player != *player && e.Target != *player {
				continue
			}
			if *kind != "" && e.Kind != *kind {
				continue
			}
			b, _ := json.Marshal(e)
			fmt.Println(string(b))
			printed++
			if *limit > 0 && printed >= *limit {
				return
			}
		}
	}
}

// readOutcomes decodes one hourly log file. A torn final entry from a crashed
// writer ends the file without an error.
func readOutcomes(path string) ([]world.OutcomeEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []world.OutcomeEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e world.OutcomeEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
