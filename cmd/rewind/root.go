package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/adapters/file"
	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/adapters/redis"
	"github.com/aretw0/rewind/pkg/bprog"
	"github.com/aretw0/rewind/pkg/persistence/middleware"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/session"
)

var rootCmd = &cobra.Command{
	Use:   "rewind",
	Short: "Rewind is a time-travel debugger for behavioral programs",
	Long: `Rewind runs behavioral programs sync point by sync point.
It pauses on breakpoints, records every sync point and lets you roll back and branch.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "file", "Session store: memory, file or redis")
	rootCmd.PersistentFlags().String("dir", ".", "Directory holding the .rewind session store")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address (with --store redis)")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password (with --store redis)")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database (with --store redis)")
	rootCmd.PersistentFlags().String("encryption-key", os.Getenv("REWIND_ENCRYPTION_KEY"), "Base64 AES-256 key sealing stored debugger state")
	rootCmd.PersistentFlags().StringSlice("fallback-keys", nil, "Base64 keys still accepted when reading sealed state")
	rootCmd.PersistentFlags().StringSlice("mask-globals", nil, "Regex patterns of global names masked before storing")
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// backend is the session store selected by the persistent flags.
type backend struct {
	store  ports.StateStore
	locker ports.DistributedLocker
	close  func() error
}

func openStore(cmd *cobra.Command) (*backend, error) {
	b, err := openBaseStore(cmd)
	if err != nil {
		return nil, err
	}
	mws, err := storeMiddlewares(cmd)
	if err != nil {
		_ = b.close()
		return nil, err
	}
	b.store = middleware.Chain(b.store, mws...)
	return b, nil
}

func storeMiddlewares(cmd *cobra.Command) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if patterns, _ := cmd.Flags().GetStringSlice("mask-globals"); len(patterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}

	raw, _ := cmd.Flags().GetString("encryption-key")
	if raw == "" {
		return mws, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	cfg := middleware.EncryptionConfig{ActiveKey: key}
	fallbacks, _ := cmd.Flags().GetStringSlice("fallback-keys")
	for _, f := range fallbacks {
		k, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback key: %w", err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	return append(mws, mw), nil
}

func openBaseStore(cmd *cobra.Command) (*backend, error) {
	kind, _ := cmd.Flags().GetString("store")
	switch kind {
	case "memory":
		return &backend{store: memory.NewStore(), close: func() error { return nil }}, nil
	case "file":
		dir, _ := cmd.Flags().GetString("dir")
		return &backend{store: file.New(filepath.Join(dir, ".rewind", "sessions")), close: func() error { return nil }}, nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		password, _ := cmd.Flags().GetString("redis-password")
		db, _ := cmd.Flags().GetInt("redis-db")
		store := redis.New(addr, password, db)
		return &backend{
			store:  store,
			locker: redis.NewLocker(store.Client(), redis.DefaultPrefix),
			close:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q (memory, file or redis)", kind)
}

func (b *backend) managerOptions(logger *slog.Logger) []session.Option {
	opts := []session.Option{session.WithLogger(logger)}
	if b.locker != nil {
		opts = append(opts, session.WithLocker(b.locker))
	}
	return opts
}

// programLoader resolves program names to <dir>/<name>.yaml.
func programLoader(dir string, reg *registry.Registry, logger *slog.Logger) func(string) (ports.Program, error) {
	return func(name string) (ports.Program, error) {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("%w: bad program name %q", bprog.ErrInvalidProgram, name)
		}
		var opts []bprog.Option
		if reg != nil {
			opts = append(opts, bprog.WithRegistry(reg))
		}
		if logger != nil {
			opts = append(opts, bprog.WithLogger(logger))
		}
		return bprog.LoadFile(filepath.Join(dir, name+".yaml"), opts...)
	}
}
