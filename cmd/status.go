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

	"github.com/gaestu/SurfSifter/store"
)

func openStoreFlag(cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("store")
	return store.Open(path)
}

// Status returns the status command, printing a run with its audit trail and
// warnings.
func Status() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run, its audit trail and warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFlag(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", run.ID)
			fmt.Fprintf(out, "evidence:  %s\n", run.EvidenceID)
			fmt.Fprintf(out, "extractor: %s %s\n", run.ExtractorName, run.ExtractorVersion)
			fmt.Fprintf(out, "status:    %s\n", run.Status)
			fmt.Fprintf(out, "started:   %s\n", run.StartedAt)
			if run.FinishedAt != "" {
				fmt.Fprintf(out, "finished:  %s\n", run.FinishedAt)
			}

			log, err := st.ProcessLog(run.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, entry := range log {
				fmt.Fprintf(w, "%s\t%s -> %s\t%s\n",
					entry.Timestamp, entry.FromStatus, entry.ToStatus, entry.Detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			warnings, err := st.Warnings(run.ID)
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Fprintf(out, "warning [%s] %s: %s %s\n",
					warning.Severity, warning.Type, warning.ItemName, warning.ItemValue)
			}
			return nil
		},
	}
	cmd.Flags().String("store", "surfsifter.db", "artifact database")
	return cmd
}

// URLs returns the urls command, dumping the URL registry of one evidence
// item.
func URLs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urls <evidence-id>",
		Short: "Dump the URL registry of an evidence item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFlag(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.URLRegistry(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tFIRST SEEN\tLAST SEEN\tCOUNT")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					entry.URL, entry.FirstSeen, entry.LastSeen, entry.Occurrences)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("store", "surfsifter.db", "artifact database")
	return cmd
}
