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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gaestu/SurfSifter/discover"
)

// Discover returns the discover command, listing matching artifact files
// without staging anything. Useful for a quick look at what a run would pick
// up.
func Discover() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <evidence-dir>",
		Short: "List artifact candidates in an evidence directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			evidenceID, _ := cmd.Flags().GetString("evidence-id")
			src, err := openSource(args[0], evidenceID)
			if err != nil {
				return err
			}
			patternFile, _ := cmd.Flags().GetString("patterns")
			patterns, err := loadPatterns(patternFile)
			if err != nil {
				return err
			}

			artifacts, _ := cmd.Flags().GetStringSlice("artifact")
			if len(artifacts) == 0 {
				artifacts = patterns.ArtifactTypes()
			}
			partitions, _ := cmd.Flags().GetIntSlice("partition")

			engine := discover.New(patterns, discover.WithLogger(newLogger(cmd)))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, artifactType := range artifacts {
				candidates, err := engine.Discover(ctx, src, artifactType, intsOrNil(partitions))
				if err != nil {
					return err
				}
				for _, c := range candidates {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
						c.ArtifactType, c.Browser, c.PartitionIndex, c.Size, c.LogicalPath)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("evidence-id", "", "evidence identifier (default: directory basename)")
	cmd.Flags().StringSlice("artifact", nil, "artifact types to list (default: all)")
	cmd.Flags().IntSlice("partition", nil, "partitions to search (default: all)")
	cmd.Flags().String("patterns", "", "additional artifact pattern YAML")
	cmd.Flags().Bool("verbose", false, "debug logging")
	return cmd
}
