package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	persistlog "chatwars.ai/internal/persistence/log"
	"chatwars.ai/internal/persistence/snapshot"
	"chatwars.ai/internal/persistence/sqlitestore"
	"chatwars.ai/internal/sim/engine"
	"chatwars.ai/internal/sim/model"
)

// errUsage marks bad invocations; main exits 2 for them instead of 1.
var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: admin <keys|get|list|export|import|audit|state|snapshot> [flags]", errUsage)
	}
	cmds := map[string]func([]string, io.Writer) error{
		"keys":     keysCmd,
		"get":      getCmd,
		"list":     listCmd,
		"export":   exportCmd,
		"import":   importCmd,
		"audit":    auditCmd,
		"state":    stateCmd,
		"snapshot": snapshotCmd,
	}
	fn, ok := cmds[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return fn(args[1:], out)
}

func dbPathFlag(fs *flag.FlagSet) (dataDir, dbPath *string) {
	dataDir = fs.String("data", "./data", "runtime data directory")
	dbPath = fs.String("db", "", "sqlite db path (default: <data>/chatwars.db)")
	return dataDir, dbPath
}

func resolveDB(dataDir, dbPath string) string {
	if p := strings.TrimSpace(dbPath); p != "" {
		return p
	}
	return filepath.Join(dataDir, "chatwars.db")
}

func keysCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keys", flag.ContinueOnError)
	dataDir, dbPath := dbPathFlag(fs)
	prefix := fs.String("prefix", "", "key prefix filter, e.g. player:42:")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	st, err := sqlitestore.Open(resolveDB(*dataDir, *dbPath))
	if err != nil {
		return err
	}
	defer st.Close()
	keys, err := st.ListKeys(context.Background(), *prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func getCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	dataDir, dbPath := dbPathFlag(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: get <key>", errUsage)
	}
	key := strings.TrimSpace(fs.Arg(0))
	if _, err := model.ParseKey(key); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	st, err := sqlitestore.Open(resolveDB(*dataDir, *dbPath))
	if err != nil {
		return err
	}
	defer st.Close()
	v, ok, err := st.Get(context.Background(), key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: not found", key)
	}
	var pretty any
	if err := json.Unmarshal(v, &pretty); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return printJSON(out, pretty)
}

func exportCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dataDir, dbPath := dbPathFlag(fs)
	outPath := fs.String("out", "", "snapshot path (default: <data>/snapshots/snapshot-<utc>.jsonl.zst)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	now := time.Now().UTC()
	path := strings.TrimSpace(*outPath)
	if path == "" {
		path = filepath.Join(*dataDir, "snapshots", "snapshot-"+now.Format("20060102T150405Z")+".jsonl.zst")
	}

	st, err := sqlitestore.Open(resolveDB(*dataDir, *dbPath))
	if err != nil {
		return err
	}
	defer st.Close()
	h, err := snapshot.Export(context.Background(), st, path, snapshot.Header{CreatedAt: now})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "export ok: records=%d out=%s\n", h.Records, path)
	return nil
}

func importCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dataDir, dbPath := dbPathFlag(fs)
	inPath := fs.String("in", "", "snapshot path (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*inPath) == "" {
		return fmt.Errorf("%w: missing -in", errUsage)
	}
	// Fail on a bad file before the database is created or touched.
	if _, err := snapshot.ReadHeader(*inPath); err != nil {
		return err
	}

	st, err := sqlitestore.Open(resolveDB(*dataDir, *dbPath))
	if err != nil {
		return err
	}
	defer st.Close()
	h, err := snapshot.Import(context.Background(), *inPath, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "import ok: records=%d created_at=%s\n", h.Records, h.CreatedAt.Format(time.RFC3339))
	return nil
}

// auditCmd prints audit entries in time order, optionally filtered by chat
// and action.
func auditCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	chatID := fs.Int64("chat", 0, "chat id filter (optional)")
	action := fs.String("action", "", "action filter, e.g. attack (optional)")
	limit := fs.Int("limit", 0, "print at most the last N entries (0 = all)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	dir := filepath.Join(*dataDir, "audit")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var matched []engine.AuditEntry
	for _, name := range names {
		entries, err := persistlog.ReadAudit(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if *chatID != 0 && e.ChatID != *chatID {
				continue
			}
			if *action != "" && e.Action != *action {
				continue
			}
			matched = append(matched, e)
		}
	}
	if *limit > 0 && len(matched) > *limit {
		matched = matched[len(matched)-*limit:]
	}
	for _, e := range matched {
		if err := printJSON(out, e); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(out io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
