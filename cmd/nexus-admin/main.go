// ====================================
// File: cmd/nexus-admin/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-market-nexus/internal/config"
	"github.com/rovshanmuradov/solana-market-nexus/internal/service"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/mongo"
	"github.com/rovshanmuradov/solana-market-nexus/internal/utils/logger"
)

const usage = `Usage: nexus-admin [-config path] <command> [args]

Commands:
  indexes                          create MongoDB indexes
  import-wallets <email> <file>    import wallets from CSV (label,address,allocation)
`

func main() {
	configPath := flag.String("config", os.Getenv("NEXUS_CONFIG"), "path to config file (yaml/json)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	defer log.TrackPerformance("admin " + args[0])()

	ctx, cancel := context.WithTimeout(context.Background(), 4*cfg.Mongo.Timeout)
	defer cancel()

	st, err := mongo.NewStorage(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, log.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	return dispatch(ctx, st, args, out, log.Logger)
}

func dispatch(ctx context.Context, st storage.Storage, args []string, out io.Writer, log *zap.Logger) error {
	switch args[0] {
	case "indexes":
		if err := st.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
		fmt.Fprintln(out, "MongoDB indexes created successfully")
		return nil

	case "import-wallets":
		if len(args) != 3 {
			return errors.New("usage: import-wallets <email> <file>")
		}
		return importWallets(ctx, st, args[1], args[2], out, log)

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func importWallets(ctx context.Context, st storage.Storage, email, path string, out io.Writer, log *zap.Logger) error {
	user, err := st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("user %s not found", email)
		}
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	svc := service.NewWalletService(&service.WalletServiceConfig{Store: st, Logger: log})
	result, err := svc.Import(ctx, user.ID, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d wallets for %s\n", len(result.Imported), user.Email)
	for _, rej := range result.Rejected {
		fmt.Fprintf(out, "  line %d: %s\n", rej.Line, rej.Reason)
	}
	return nil
}
