package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/auth"
	"github.com/sagarc03/hubstore/config"
	"github.com/sagarc03/hubstore/database"
	"github.com/sagarc03/hubstore/proofs"
)

var proofsCmd = &cobra.Command{
	Use:   "proofs",
	Short: "Manage the social proof table",
	Long: `Manage the SQL table the hub reads social proofs from.

Proofs are keyed by (address, service, identifier). Adding an existing
proof updates its validity.`,
}

var proofsAddCmd = &cobra.Command{
	Use:   "add [flags] <address> <service> <identifier>",
	Short: "Record a proof for an address",
	Long: `Record a proof for an address, or import many from a JSON file.

Examples:
  # Record a verified proof
  hubstore proofs add QmW4nsXQ... github octocat

  # Record a proof that failed verification
  hubstore proofs add --invalid QmW4nsXQ... twitter octocat

  # Import [{"address":"...","service":"...","identifier":"...","valid":true}, ...]
  hubstore proofs add --file proofs.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if proofsAddFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: runProofsAdd,
}

var proofsRemoveCmd = &cobra.Command{
	Use:   "remove [flags] <address> [service identifier]",
	Short: "Remove proofs from an address",
	Long: `Remove one proof, or every proof of an address with --all.

Examples:
  hubstore proofs remove QmW4nsXQ... github octocat
  hubstore proofs remove --all QmW4nsXQ...`,
	Args: func(cmd *cobra.Command, args []string) error {
		if proofsRemoveAll {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: runProofsRemove,
}

var proofsListCmd = &cobra.Command{
	Use:   "list [flags]",
	Short: "List recorded proofs",
	Args:  cobra.NoArgs,
	RunE:  runProofsList,
}

var proofsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the proof table over gRPC",
	Long: `Expose the proof table as the gRPC proof service so other hubs can
use it with proofs.source=grpc.`,
	Args: cobra.NoArgs,
	RunE: runProofsServe,
}

var (
	proofsAddFile    string
	proofsAddInvalid bool
	proofsAddQuiet   bool

	proofsRemoveAll   bool
	proofsRemoveQuiet bool

	proofsListPrefix string
	proofsListLimit  int
	proofsListJSON   bool

	proofsServeListen string
)

func init() {
	proofsAddCmd.Flags().StringVarP(&proofsAddFile, "file", "f", "", "import proofs from a JSON file")
	proofsAddCmd.Flags().BoolVar(&proofsAddInvalid, "invalid", false, "record the proof as not valid")
	proofsAddCmd.Flags().BoolVarP(&proofsAddQuiet, "quiet", "q", false, "suppress per-proof output")

	proofsRemoveCmd.Flags().BoolVar(&proofsRemoveAll, "all", false, "remove every proof of the address")
	proofsRemoveCmd.Flags().BoolVarP(&proofsRemoveQuiet, "quiet", "q", false, "suppress per-proof output")

	proofsListCmd.Flags().StringVarP(&proofsListPrefix, "prefix", "p", "", "only list addresses starting with prefix")
	proofsListCmd.Flags().IntVarP(&proofsListLimit, "limit", "n", 0, "maximum number of proofs (0 for all)")
	proofsListCmd.Flags().BoolVar(&proofsListJSON, "json", false, "output JSON")

	proofsServeCmd.Flags().StringVar(&proofsServeListen, "listen", "", "gRPC listen address (default: proofs.grpc.listen)")

	proofsCmd.AddCommand(proofsAddCmd, proofsRemoveCmd, proofsListCmd, proofsServeCmd)
	rootCmd.AddCommand(proofsCmd)
}

// proofEntry is one proof in an import file.
type proofEntry struct {
	Address    string `json:"address"`
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
	Valid      bool   `json:"valid"`
}

func (e proofEntry) validate() error {
	if !auth.IsDerivedAddress(e.Address) {
		return fmt.Errorf("%w: invalid address %q", hubstore.ErrInvalidInput, e.Address)
	}
	if e.Service == "" || e.Identifier == "" {
		return fmt.Errorf("%w: service and identifier are required", hubstore.ErrInvalidInput)
	}
	return nil
}

// openProofRepo opens the configured proof database. The caller must close it.
func openProofRepo(ctx context.Context, cfg *config.Config) (database.Database, error) {
	db, err := database.Open(ctx, cfg.Database, cfg.Database.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("open proof database: %w", err)
	}
	return db, nil
}

// cacheInvalidator drops the cached proof list of an address.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, address string) error
}

// invalidatingRepo evicts an address from the proof cache after every
// successful write to it. Eviction failures are logged, not returned.
type invalidatingRepo struct {
	proofs.Repo
	cache cacheInvalidator
}

func (r invalidatingRepo) Upsert(ctx context.Context, address string, p proofs.Proof) (proofs.Record, bool, error) {
	rec, isNew, err := r.Repo.Upsert(ctx, address, p)
	if err == nil {
		r.invalidate(ctx, address)
	}
	return rec, isNew, err
}

func (r invalidatingRepo) Delete(ctx context.Context, address, service, identifier string) error {
	err := r.Repo.Delete(ctx, address, service, identifier)
	if err == nil {
		r.invalidate(ctx, address)
	}
	return err
}

func (r invalidatingRepo) invalidate(ctx context.Context, address string) {
	if err := r.cache.Invalidate(ctx, address); err != nil {
		slog.Warn("proof cache invalidation failed", "address", address, "error", err)
	}
}

// writableProofRepo returns the repo proof commands write through. With the
// proof cache enabled, writes also evict the address from Redis. The
// returned close func releases the Redis client.
func writableProofRepo(cfg *config.Config, db database.Database) (proofs.Repo, func() error) {
	repo := db.GetRepo()
	if !cfg.Proofs.Cache.Enabled {
		return repo, func() error { return nil }
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Proofs.Cache.Addr,
		Password: cfg.Proofs.Cache.Password,
		DB:       cfg.Proofs.Cache.DB,
	})
	cache := proofs.NewCachedSource(rdb, repo, proofs.CacheConfig{
		TTL:       cfg.Proofs.Cache.TTL,
		KeyPrefix: cfg.Proofs.Cache.KeyPrefix,
	})
	return invalidatingRepo{Repo: repo, cache: cache}, rdb.Close
}

func runProofsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	var entries []proofEntry
	if proofsAddFile != "" {
		entries, err = readProofFile(proofsAddFile)
		if err != nil {
			return err
		}
	} else {
		entries = []proofEntry{{Address: args[0], Service: args[1], Identifier: args[2], Valid: !proofsAddInvalid}}
	}

	ctx := cmd.Context()

	db, err := openProofRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo, closeCache := writableProofRepo(cfg, db)
	defer func() { _ = closeCache() }()

	created, updated, err := addProofs(ctx, repo, entries, proofsAddQuiet)
	if err != nil {
		return err
	}

	slog.Info("add complete", "created", created, "updated", updated)
	return nil
}

func readProofFile(path string) ([]proofEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proof file: %w", err)
	}

	var entries []proofEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse proof file %s: %w", path, err)
	}
	return entries, nil
}

// addProofs validates every entry before writing any of them.
func addProofs(ctx context.Context, repo proofs.Repo, entries []proofEntry, quiet bool) (created, updated int, err error) {
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return 0, 0, fmt.Errorf("proof %d: %w", i, err)
		}
	}

	for _, e := range entries {
		rec, isNew, upsertErr := repo.Upsert(ctx, e.Address, proofs.Proof{
			Service:    e.Service,
			Identifier: e.Identifier,
			Valid:      e.Valid,
		})
		if upsertErr != nil {
			return created, updated, fmt.Errorf("add %s/%s for %s: %w", e.Service, e.Identifier, e.Address, upsertErr)
		}

		if isNew {
			created++
		} else {
			updated++
		}
		if !quiet {
			slog.Info("recorded", "id", rec.ID, "address", rec.Address, "service", rec.Proof.Service,
				"identifier", rec.Proof.Identifier, "valid", rec.Proof.Valid, "created", isNew)
		}
	}

	return created, updated, nil
}

func runProofsRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := openProofRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo, closeCache := writableProofRepo(cfg, db)
	defer func() { _ = closeCache() }()

	if proofsRemoveAll {
		removed, err := removeAddressProofs(ctx, repo, args[0], proofsRemoveQuiet)
		if err != nil {
			return err
		}
		slog.Info("remove complete", "address", args[0], "removed", removed)
		return nil
	}

	err = repo.Delete(ctx, args[0], args[1], args[2])
	if errors.Is(err, hubstore.ErrNotFound) {
		slog.Warn("not found", "address", args[0], "service", args[1], "identifier", args[2])
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove proof: %w", err)
	}

	if !proofsRemoveQuiet {
		slog.Info("removed", "address", args[0], "service", args[1], "identifier", args[2])
	}
	return nil
}

// removeAddressProofs deletes every proof recorded for address.
func removeAddressProofs(ctx context.Context, repo proofs.Repo, address string, quiet bool) (int, error) {
	list, err := repo.Proofs(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("list proofs of %s: %w", address, err)
	}

	removed := 0
	for _, p := range list {
		err := repo.Delete(ctx, address, p.Service, p.Identifier)
		if errors.Is(err, hubstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("remove %s/%s: %w", p.Service, p.Identifier, err)
		}
		removed++
		if !quiet {
			slog.Info("removed", "address", address, "service", p.Service, "identifier", p.Identifier)
		}
	}

	return removed, nil
}

func runProofsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := openProofRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	records, err := collectProofs(ctx, db.GetRepo(), proofsListPrefix, proofsListLimit)
	if err != nil {
		return err
	}

	if proofsListJSON {
		return writeProofsJSON(cmd.OutOrStdout(), records)
	}
	return writeProofsTable(cmd.OutOrStdout(), records)
}

const listPageSize = 100

// collectProofs pages through the repo. limit <= 0 collects everything.
func collectProofs(ctx context.Context, repo proofs.Repo, prefix string, limit int) ([]proofs.Record, error) {
	records := []proofs.Record{}
	cursor := ""

	for {
		pageSize := listPageSize
		if limit > 0 && limit-len(records) < pageSize {
			pageSize = limit - len(records)
		}

		result, err := repo.List(ctx, proofs.ListQuery{
			AddressPrefix: prefix,
			Limit:         pageSize,
			Cursor:        cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list proofs: %w", err)
		}

		records = append(records, result.Items...)

		if result.NextCursor == "" || (limit > 0 && len(records) >= limit) {
			return records, nil
		}
		cursor = result.NextCursor
	}
}

func writeProofsJSON(w io.Writer, records []proofs.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeProofsTable(w io.Writer, records []proofs.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ADDRESS\tSERVICE\tIDENTIFIER\tVALID\tUPDATED")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			r.Address, r.Proof.Service, r.Proof.Identifier, r.Proof.Valid, r.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func runProofsServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := openProofRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	listen := proofsServeListen
	if listen == "" {
		listen = cfg.Proofs.GRPC.Listen
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listen, err)
	}

	server := grpc.NewServer()
	proofs.RegisterProofServiceServer(server, &proofs.GRPCServer{Source: db.GetRepo()})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down proof service...")
		server.GracefulStop()
	}()

	slog.Info("starting proof service", "addr", lis.Addr().String(), "table", cfg.Database.Tables.Proofs)
	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("proof service error: %w", err)
	}

	return nil
}
