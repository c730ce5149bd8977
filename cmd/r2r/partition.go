package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/rdf2rest"
	"github.com/brunobiangulo/rdf2rest/partition"
	"github.com/brunobiangulo/rdf2rest/rdf"
)

type partitionFlags struct {
	sources []string
	ignore  []string
	limit   int
	offset  int
	out     string
	dir     string
}

func partitionCmd(g *globals) *cobra.Command {
	f := &partitionFlags{}

	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Extract a partition from one or more source files",
		Long: `Extract a partition: a set of root resources together with every
resource they exclusively own, written as one Turtle or N-Triples file.

Terms are given as prefix:local, <iri> or a bare absolute IRI. Prefixes come
from the source files and the configured namespaces.`,
	}

	cmd.PersistentFlags().StringArrayVarP(&f.sources, "source", "s", nil, "Source file (repeatable)")
	cmd.PersistentFlags().StringArrayVar(&f.ignore, "ignore", nil, "Predicate to copy but never follow (repeatable)")
	cmd.PersistentFlags().IntVar(&f.limit, "limit", 0, "Maximum number of roots (0 for all)")
	cmd.PersistentFlags().IntVar(&f.offset, "offset", 0, "Number of sorted roots to skip")
	cmd.PersistentFlags().StringVarP(&f.out, "out", "o", "", "Output file name (.ttl appended when no extension)")
	cmd.PersistentFlags().StringVar(&f.dir, "dir", ".", "Output directory")
	cmd.MarkPersistentFlagRequired("source")

	cmd.AddCommand(&cobra.Command{
		Use:   "type <type>",
		Short: "Partition rooted at every instance of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartition(cmd, g, f, args[0], partition.ExtractByType)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "link <predicate>",
		Short: "Partition rooted at every object of a predicate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartition(cmd, g, f, args[0], partition.ExtractByLink)
		},
	})

	return cmd
}

type extractFunc func(context.Context, *rdf.Graph, rdf.Term, partition.Options) (*partition.Result, error)

func runPartition(cmd *cobra.Command, g *globals, f *partitionFlags, termArg string, extract extractFunc) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src, err := rdf2rest.ReadGraph(ctx, f.sources...)
	if err != nil {
		return err
	}

	ns := src.Namespaces.Clone()
	ns.Merge(cfg.Namespaces)

	term, err := expand(ns, termArg)
	if err != nil {
		return err
	}
	opts := partition.Options{
		Limit:      f.limit,
		Offset:     f.offset,
		Filename:   f.out,
		Namespaces: cfg.Namespaces,
	}
	for _, s := range f.ignore {
		p, err := expand(ns, s)
		if err != nil {
			return err
		}
		opts.Ignore = append(opts.Ignore, p)
	}

	res, err := extract(ctx, src, term, opts)
	if err != nil {
		return err
	}
	path, err := partition.WriteFile(res, f.dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d roots, %d linked, %d triples\n",
		filepath.Base(path), res.Roots, res.Linked, res.Graph.Len())
	return nil
}

func expand(ns rdf.Namespaces, s string) (rdf.Term, error) {
	t, ok := ns.Expand(s)
	if !ok {
		return rdf.Term{}, fmt.Errorf("cannot resolve %q: unknown prefix", s)
	}
	return t, nil
}
