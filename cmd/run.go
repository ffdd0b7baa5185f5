// Copyright (c) 2026 gaestu
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gaestu/SurfSifter/extract"
	"github.com/gaestu/SurfSifter/pipeline"
	"github.com/gaestu/SurfSifter/store"
)

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "surfsifter.db", "artifact database")
	cmd.Flags().String("output", "output", "staging directory for extracted files")
	cmd.Flags().String("evidence-id", "", "evidence identifier (default: directory basename)")
	cmd.Flags().StringSlice("artifact", nil, "artifact types to process (default: all)")
	cmd.Flags().IntSlice("partition", nil, "partitions to process (default: all)")
	cmd.Flags().Int("workers", 4, "parallel staging workers")
	cmd.Flags().Bool("use-index", false, "discover via the precomputed file index instead of walking")
	cmd.Flags().String("patterns", "", "additional artifact pattern YAML")
	cmd.Flags().String("extractor", pipeline.DefaultExtractorName, "extractor name recorded with the run")
	cmd.Flags().Bool("verbose", false, "debug logging")
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *store.Store, error) {
	storePath, _ := cmd.Flags().GetString("store")
	output, _ := cmd.Flags().GetString("output")
	workers, _ := cmd.Flags().GetInt("workers")
	useIndex, _ := cmd.Flags().GetBool("use-index")
	patternFile, _ := cmd.Flags().GetString("patterns")
	extractor, _ := cmd.Flags().GetString("extractor")

	patterns, err := loadPatterns(patternFile)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithPatterns(patterns),
		pipeline.WithExtractorName(extractor),
		pipeline.WithWorkers(workers),
		pipeline.WithLogger(newLogger(cmd)),
	}
	if useIndex {
		opts = append(opts, pipeline.WithFileIndex())
	}
	return pipeline.New(st, output, opts...), st, nil
}

// Run returns the run command, executing the full pipeline against a mounted
// evidence directory: discovery, staging and ingestion in one go.
func Run() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <evidence-dir>",
		Short: "Discover, stage and ingest browser artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			evidenceID, _ := cmd.Flags().GetString("evidence-id")
			src, err := openSource(args[0], evidenceID)
			if err != nil {
				return err
			}
			pl, st, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			artifacts, _ := cmd.Flags().GetStringSlice("artifact")
			partitions, _ := cmd.Flags().GetIntSlice("partition")
			run, err := pl.Run(ctx, src, sliceOrNil(artifacts), intsOrNil(partitions))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s\n", run.ID, run.Status)
			return nil
		},
	}
	addPipelineFlags(cmd)
	return cmd
}

// Extract returns the extract command. It stops after staging: the run stays
// in the extracted state and the manifest on disk, ready for a later ingest.
func Extract() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <evidence-dir>",
		Short: "Discover and stage browser artifacts without ingesting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			evidenceID, _ := cmd.Flags().GetString("evidence-id")
			src, err := openSource(args[0], evidenceID)
			if err != nil {
				return err
			}
			pl, st, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			artifacts, _ := cmd.Flags().GetStringSlice("artifact")
			partitions, _ := cmd.Flags().GetIntSlice("partition")
			run, manifest, err := pl.Extract(ctx, src, sliceOrNil(artifacts), intsOrNil(partitions))
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s, %d entries, manifest %s\n",
				run.ID, run.Status, len(manifest.Entries),
				filepath.Join(output, extract.ManifestFilename))
			return nil
		},
	}
	addPipelineFlags(cmd)
	return cmd
}

// Ingest returns the ingest command, replaying a staged manifest into the
// store. No evidence access is needed.
func Ingest() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <output-dir>",
		Short: "Parse and ingest a staged manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			pl, st, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := pl.IngestManifest(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s\n", run.ID, run.Status)
			return nil
		},
	}
	addPipelineFlags(cmd)
	return cmd
}

// Index returns the index command, building the per-partition file index
// that later discovery runs can use instead of walking the evidence.
func Index() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <evidence-dir>",
		Short: "Build the file index for an evidence item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			evidenceID, _ := cmd.Flags().GetString("evidence-id")
			src, err := openSource(args[0], evidenceID)
			if err != nil {
				return err
			}
			pl, st, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			return pl.BuildFileIndex(ctx, src)
		},
	}
	addPipelineFlags(cmd)
	return cmd
}
