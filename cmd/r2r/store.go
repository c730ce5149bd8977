package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/rdf2rest/loader"
	"github.com/brunobiangulo/rdf2rest/store"
)

func openStore(g *globals) (*store.Store, loader.Config, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, loader.Config{}, err
	}
	s, err := store.Open(cfg.ResolveStorePath())
	if err != nil {
		return nil, loader.Config{}, fmt.Errorf("opening store: %w", err)
	}
	return s, loader.Config{
		PollInterval: time.Duration(cfg.PollInterval),
		BatchSize:    cfg.BatchSize,
		Observers:    []loader.Observer{loader.LogObserver{}},
	}, nil
}

func loadCmd(g *globals) *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Merge a dataset into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, lcfg, err := openStore(g)
			if err != nil {
				return err
			}
			defer s.Close()

			job, err := loader.New(s, lcfg).Load(cmd.Context(), loader.Request{
				Source:   args[0],
				Format:   format,
				Force:    force,
				Blocking: true,
			})
			if err != nil {
				return err
			}
			st := job.Status()
			if st.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged, skipped\n", st.Source)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d triples (%d new) in %s\n",
				st.Source, st.Triples, st.Added, st.Elapsed().Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reload even if the file is unchanged")
	cmd.Flags().StringVar(&format, "format", "", "Input format (default from extension)")
	return cmd
}

func statsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store counts as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(g)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
