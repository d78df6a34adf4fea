package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/rqm/audit"
	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/registry"
	"github.com/c360studio/rqm/stamp"
	"github.com/c360studio/rqm/watch"
)

func stampCmd(flags *globalFlags) *cobra.Command {
	var fixDuplicates bool

	cmd := &cobra.Command{
		Use:   "stamp [files...]",
		Short: "Insert missing identifiers into requirement documents",
		Long: `Stamp scans requirement documents for headings, API items, and
scenarios that lack an identifier and rewrites them in place with a
fresh one. Already-stamped entities are untouched, so re-running over
a stamped corpus is a no-op.

With --fix-duplicates it instead repairs identifiers declared by more
than one entity: the occurrence matching the registry's stored
declaration keeps the identifier and the copy gets a fresh one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			stamper := stamp.New(cfg, nil, logger)

			if fixDuplicates {
				result, err := stamper.FixDuplicates(args)
				if err != nil {
					return err
				}
				for _, fix := range result.Fixes {
					fmt.Printf("fixed: %s -> %s (%s:%d)\n", fix.ID, fix.NewID, fix.File, fix.Line)
				}
				for _, u := range result.Unresolved {
					fmt.Printf("unresolved duplicate %s: %s\n", u.ID, u.Reason)
					for _, occ := range u.Occurrences {
						fmt.Printf("  %s:%d: %s\n", occ.File, occ.Line, occ.Decl)
					}
				}
				if n := len(result.Unresolved); n > 0 {
					return fmt.Errorf("%d duplicate(s) could not be resolved", n)
				}
				if len(result.Fixes) == 0 {
					fmt.Println("no duplicates found")
				}
				return nil
			}

			result, err := stamper.Run(args)
			if err != nil {
				return err
			}
			if result.Stamped == 0 {
				fmt.Println("all entities already stamped")
				return nil
			}
			fmt.Printf("stamped %d identifier(s) across %d file(s)\n", result.Stamped, len(result.Files))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fixDuplicates, "fix-duplicates", false, "Repair identifiers declared by more than one entity")

	return cmd
}

func indexCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the identifier registry from the live corpus",
		Long: `Index rescans every requirement document and implementation source
file, rebuilds the registry from scratch, and writes it out. When the
corpus declares an identifier more than once the registry is left
untouched and every conflict is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return runIndex(cfg, logger)
		},
	}
}

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Cross-check live identifier references against the registry",
		Long: `Check scans the document and source trees for identifier tokens and
reports every reference to an identifier the registry does not know.
Registered entities that nothing references are listed as warnings
and do not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			result, err := audit.Check(cfg, logger)
			if err != nil {
				return err
			}
			for _, stale := range result.Stale {
				fmt.Printf("stale reference %s in %s\n", stale.ID, stale.File)
			}
			for _, id := range result.Unreferenced {
				fmt.Printf("warning: %s is not referenced anywhere\n", id)
			}
			if n := len(result.Stale); n > 0 {
				return fmt.Errorf("%d stale reference(s) found", n)
			}
			fmt.Println("registry is consistent with the corpus")
			return nil
		},
	}
}

func cleanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Prune registry entries that no longer exist in the corpus",
		Long: `Clean removes registry entries whose declaring document or annotation
is gone, and drops recorded references whose file no longer contains
the identifier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			result, err := audit.Clean(cfg, logger)
			if err != nil {
				return err
			}
			for _, removal := range result.Removed {
				if removal.File == "" {
					fmt.Printf("removed %s: %s\n", removal.ID, removal.Reason)
					continue
				}
				fmt.Printf("removed reference %s -> %s: %s\n", removal.ID, removal.File, removal.Reason)
			}
			if !result.Changed {
				fmt.Println("registry already clean")
			}
			return nil
		},
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stamp and reindex automatically when documents change",
		Long: `Watch monitors the requirement-document tree and runs a stamp pass
followed by a registry rebuild after each quiet period following a
change. It runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			pass := func() error {
				stamper := stamp.New(cfg, nil, logger)
				if _, err := stamper.Run(nil); err != nil {
					return err
				}
				return runIndex(cfg, logger)
			}

			w, err := watch.New(cfg.DocsDir, debounce, logger, pass)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Watching for document changes",
				"docs_dir", cfg.DocsDir,
				"debounce", debounce.String())
			return w.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-running after a change")

	return cmd
}

// runIndex rebuilds the registry and persists it, or reports every
// duplicate conflict without touching the stored registry.
func runIndex(cfg *config.Config, logger *slog.Logger) error {
	builder := registry.NewBuilder(cfg, logger)
	reg, conflicts, err := builder.Build()
	if err != nil {
		return err
	}

	if len(conflicts) > 0 {
		for _, c := range conflicts {
			fmt.Printf("duplicate identifier %s declared %d times:\n", c.ID, len(c.Occurrences))
			for i, occ := range c.Occurrences {
				mark := ""
				switch {
				case c.Original == i:
					mark = "  [likely original]"
				case c.Original >= 0:
					mark = "  [likely copy]"
				}
				fmt.Printf("  %s:%d: %s%s\n", occ.File, occ.Line, occ.Decl, mark)
			}
			if c.Original < 0 {
				fmt.Println("  unresolvable by inspection; fix manually or run \"rqm stamp --fix-duplicates\"")
			}
		}
		return fmt.Errorf("registry not written: %d duplicate identifier(s) found", len(conflicts))
	}

	if err := reg.Save(cfg.RegistryPath()); err != nil {
		return err
	}

	refs := 0
	for _, id := range reg.IDs() {
		refs += len(reg.Entries[id].Refs)
	}
	fmt.Printf("indexed %d entities (%d references) -> %s\n", len(reg.Entries), refs, cfg.RegistryPath())
	return nil
}
