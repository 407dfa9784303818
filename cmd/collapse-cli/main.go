package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/annel0/block-physics/internal/auth"
	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/eventbus"
	"github.com/annel0/block-physics/internal/registry"
)

const commands = "defaults, show, get, set, delete, import, reload, token, secret"

func main() {
	var (
		command  = flag.String("cmd", "show", "Command: "+commands)
		file     = flag.String("file", "configs/collapse.yaml", "YAML options file (defaults, show, import)")
		badger   = flag.String("badger", "", "Badger directory with options (show, get, set, delete, import)")
		redisURL = flag.String("redis", "", "Redis URL with options (show, get, set, delete, import)")
		redisKey = flag.String("redis-key", "collapse:options", "Redis hash key")
		catalog  = flag.String("catalog", "", "Registry catalog JSON (empty: built-in vanilla set)")
		name     = flag.String("name", "", "Option name (get, set, delete)")
		value    = flag.String("value", "", "Option value in YAML syntax, e.g. 5 or [minecraft:glass] (set)")
		natsURL  = flag.String("nats", "nats://localhost:4222", "NATS server URL (reload)")
		stream   = flag.String("stream", "CONFIG", "JetStream stream (reload)")
		secret   = flag.String("secret", os.Getenv("COLLAPSE_ADMIN_SECRET"), "Base64 admin secret (token)")
		operator = flag.String("operator", "cli", "Operator name (token, reload)")
		admin    = flag.Bool("admin", true, "Issue admin token (token)")
		ttl      = flag.Duration("ttl", 24*time.Hour, "Token lifetime (token)")
	)
	flag.Parse()

	ctx := context.Background()
	target := storeTarget{File: *file, Badger: *badger, RedisURL: *redisURL, RedisKey: *redisKey}

	var err error
	switch *command {
	case "defaults":
		err = writeDefaults(*file)
	case "show":
		err = showSnapshot(ctx, os.Stdout, target, *catalog)
	case "get":
		err = withStore(target, func(s optionStore) error { return getOption(ctx, os.Stdout, s, *name) })
	case "set":
		err = withStore(target, func(s optionStore) error {
			return setOption(ctx, os.Stdout, s, *catalog, *name, *value)
		})
	case "delete":
		err = withStore(target, func(s optionStore) error { return s.Delete(ctx, *name) })
	case "import":
		err = withStore(target, func(s optionStore) error { return importFile(ctx, s, *file) })
	case "reload":
		err = publishReload(ctx, *natsURL, *stream, *operator)
	case "token":
		err = issueToken(os.Stdout, *secret, *operator, *admin, *ttl)
	case "secret":
		var s string
		if s, err = auth.GenerateSecureSecret(); err == nil {
			fmt.Println(s)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: " + commands)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// writeDefaults пишет YAML со значениями по умолчанию; "-" означает stdout
func writeDefaults(path string) error {
	spec := collapse.NewLoader(registry.Vanilla()).Spec()
	if path == "-" {
		return spec.WriteDefaults(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := spec.WriteDefaults(f); err != nil {
		_ = f.Close()
		return err
	}
	fmt.Printf("✅ Defaults written to %s\n", path)
	return f.Close()
}

// showSnapshot загружает опции из источника и печатает снимок и отчёт об исправлениях
func showSnapshot(ctx context.Context, w io.Writer, target storeTarget, catalog string) error {
	reg, err := registry.LoadMemory(catalog)
	if err != nil {
		return err
	}

	var src config.Source = config.NewFileSource(target.File)
	if target.Badger != "" || target.RedisURL != "" {
		store, err := target.open()
		if err != nil {
			return err
		}
		defer store.Close()
		src = store
	}

	loader := collapse.NewLoader(reg)
	snap, report, err := loader.Load(ctx, src)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap.View()); err != nil {
		return err
	}
	for _, c := range report.Corrections {
		fmt.Fprintf(w, "⚠️  %s\n", c)
	}
	for _, d := range snap.UnknownDimensions(reg) {
		fmt.Fprintf(w, "⚠️  dimension %s is not in the registry\n", d)
	}
	return nil
}

func getOption(ctx context.Context, w io.Writer, s optionStore, name string) error {
	v, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %s\n", name, data)
	return err
}

func importFile(ctx context.Context, s optionStore, path string) error {
	raw, err := config.NewFileSource(path).Read(ctx)
	if err != nil {
		return err
	}
	if err := s.Import(ctx, raw); err != nil {
		return err
	}
	fmt.Printf("✅ Imported %d options from %s into %s\n", len(raw), path, s.Describe())
	return nil
}

// publishReload рассылает запрос перезагрузки всем узлам через JetStream
func publishReload(ctx context.Context, url, stream, operator string) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	ev, err := eventbus.NewEnvelope(eventbus.EventReloadRequested, operator, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := bus.Publish(ctx, ev); err != nil {
		return err
	}
	fmt.Printf("📡 Reload requested (event %s)\n", ev.ID)
	return nil
}

func issueToken(w io.Writer, secret, operator string, admin bool, ttl time.Duration) error {
	issuer, err := auth.NewTokenIssuer(secret)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(operator, admin, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
