package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otruyen/otruyen-api/internal/config"
	"github.com/otruyen/otruyen-api/internal/converter"
)

func newTOCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc <file.epub>",
		Short: "Print the content chapters of an EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			p, err := readerPipeline(cmd)
			if err != nil {
				return err
			}
			toc, err := p.TableOfContents(args[0])
			if err != nil {
				return err
			}
			return printTOC(cmd.OutOrStdout(), toc, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func printTOC(w io.Writer, toc *converter.TableOfContents, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"title":    toc.Metadata.Title,
			"entries":  len(toc.Entries),
			"chapters": toc.Chapters,
		})
	}
	fmt.Fprintf(w, "%s (%d content chapters, %d entries)\n", toc.Metadata.Title, len(toc.Chapters), len(toc.Entries))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tHREF")
	for _, ch := range toc.Chapters {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", ch.Number, ch.Title, ch.Href)
	}
	return tw.Flush()
}

func newChapterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter <file.epub> <number>",
		Short: "Print one content chapter of an EPUB as text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chapter number must be an integer: %q", args[1])
			}
			asHTML, _ := cmd.Flags().GetBool("html")
			p, err := readerPipeline(cmd)
			if err != nil {
				return err
			}
			ch, err := p.Chapter(args[0], number)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d/%d %s\n\n", ch.Entry.Number, ch.Total, ch.Content.Title)
			if asHTML {
				_, err = fmt.Fprintln(w, ch.Content.HTMLContent)
			} else {
				_, err = fmt.Fprintln(w, ch.Content.Content)
			}
			return err
		},
	}
	cmd.Flags().Bool("html", false, "Print the chapter body markup instead of text")
	return cmd
}

// readerPipeline builds an uncached pipeline using the boilerplate lists
// of the configuration file, when one is found.
func readerPipeline(cmd *cobra.Command) (*converter.Pipeline, error) {
	global, err := readGlobalOptions(cmd)
	if err != nil {
		return nil, err
	}
	opts := converter.Options{}
	loader := config.NewLoader(global.ConfigPath)
	// The store settings are irrelevant here.
	loader.Set("store.fixtures", "-")
	if cfg, err := loader.Load(); err == nil {
		opts.Filter = boilerplateFilter(cfg)
		opts.Logger = global.logger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	} else if global.ConfigPath != "" {
		return nil, err
	} else {
		opts.Logger = global.logger(cmd.ErrOrStderr(), "", "")
	}
	return converter.NewPipeline(opts)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "otruyen.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
