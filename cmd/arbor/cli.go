package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/ops"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "arbor",
		Usage:   "Read, export and search hierarchical note documents (.ctd)",
		Version: Version,
		Commands: []*cli.Command{
			inspectCmd(cfg),
			treeCmd(cfg),
			catCmd(cfg),
			exportCmd(cfg),
			importCmd(cfg),
			repairCmd(cfg),
			indexCmd(db, cfg),
			searchCmd(db),
			lsCmd(db),
			forgetCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// inspectCmd creates the inspect command.
func inspectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the node outline of a document as JSON",
		ArgsUsage: "<file.ctd>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Deepest level to list (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Inspect(c.Context, cfg, ops.InspectInput{
				Path:     c.Args().First(),
				MaxDepth: c.Int("depth"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// treeCmd creates the tree command.
func treeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "Draw the node tree of a document",
		ArgsUsage: "<file.ctd>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Deepest level to draw (0 = all)"},
			&cli.BoolFlag{Name: "ids", Usage: "Show node IDs"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Inspect(c.Context, cfg, ops.InspectInput{
				Path:     c.Args().First(),
				MaxDepth: c.Int("depth"),
			})
			if err != nil {
				return outputError(err)
			}
			printTree(color.Output, output, c.Bool("ids"))
			return nil
		},
	}
}

// catCmd creates the cat command.
func catCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print the text of one node",
		ArgsUsage: "<file.ctd> <node-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Usage: "First character offset"},
			&cli.IntFlag{Name: "end", Usage: "Offset past the last character (default: end of node)"},
			&cli.BoolFlag{Name: "markup", Usage: "Print the range as an XML fragment"},
			&cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("usage: arbor cat <file.ctd> <node-id>"))
			}
			nodeID, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
			if err != nil {
				return outputError(errors.NewInvalidRequest("node ID must be an integer"))
			}

			input := ops.NodeTextInput{
				Path:   c.Args().First(),
				NodeID: &nodeID,
				Start:  c.Int("start"),
				Markup: c.Bool("markup"),
			}
			if c.IsSet("end") {
				end := c.Int("end")
				input.End = &end
			}

			output, err := ops.NodeText(c.Context, cfg, input)
			if err != nil {
				return outputError(err)
			}
			switch {
			case c.Bool("json"):
				return outputJSON(output)
			case c.Bool("markup"):
				fmt.Fprintln(os.Stdout, output.Markup)
			default:
				fmt.Fprintln(os.Stdout, output.Text)
			}
			return nil
		},
	}
}

// exportCmd creates the export command.
func exportCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a document, node, subtree or text range to a new .ctd file",
		ArgsUsage: "<source.ctd>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output path (default: exports directory)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "all", Usage: "all|subtree|node|selection"},
			&cli.Int64Flag{Name: "node", Aliases: []string{"n"}, Usage: "Node ID (required unless mode is all)"},
			&cli.IntFlag{Name: "start", Usage: "Selection start offset"},
			&cli.IntFlag{Name: "end", Usage: "Selection end offset"},
			&cli.StringFlag{Name: "case", Value: "none", Usage: "none|lower|upper|toggle"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Source: c.Args().First(),
				Path:   c.String("out"),
				Mode:   c.String("mode"),
				Start:  c.Int("start"),
				Case:   c.String("case"),
			}
			if c.IsSet("end") {
				end := c.Int("end")
				input.End = &end
			}
			if c.IsSet("node") {
				nodeID := c.Int64("node")
				input.NodeID = &nodeID
			}

			output, err := ops.Export(c.Context, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Copy every node of a source document into a target document",
		ArgsUsage: "<target.ctd> <source.ctd>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "parent", Aliases: []string{"p"}, Usage: "Node to import under (default: top level)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, cfg, ops.ImportInput{
				Target:   c.Args().Get(0),
				Source:   c.Args().Get(1),
				ParentID: c.Int64("parent"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// repairCmd creates the repair command.
func repairCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "repair",
		Usage:     "Renumber duplicated node IDs and rewrite the document",
		ArgsUsage: "<file.ctd>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Report repairs without writing"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Repair(c.Context, cfg, ops.RepairInput{
				Path:   c.Args().First(),
				DryRun: c.Bool("dry-run"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// indexCmd creates the index command.
func indexCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Add documents to the search catalog (paths as args or one per line on stdin)",
		ArgsUsage: "[file.ctd...]",
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 && stdinHasData() {
				lines, err := readStdinLines()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				paths = lines
			}
			if len(paths) == 0 {
				return outputError(errors.NewInvalidRequest("no documents given"))
			}

			outputs := make([]*ops.IndexOutput, 0, len(paths))
			for _, path := range paths {
				output, err := ops.Index(c.Context, db, cfg, ops.IndexInput{Path: path})
				if err != nil {
					return outputError(fmt.Errorf("%s: %w", path, err))
				}
				outputs = append(outputs, output)
			}
			return outputJSON(outputs)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over indexed nodes",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Usage: "Restrict to one catalog document ID"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Results to skip"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, db, ops.SearchInput{
				Query:  strings.Join(c.Args().Slice(), " "),
				DocID:  c.String("doc"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(output)
			}
			printSearch(color.Output, output)
			return nil
		},
	}
}

// lsCmd creates the ls command.
func lsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List indexed documents",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum documents"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Documents to skip"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListDocuments(c.Context, db, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(output)
			}
			printDocuments(color.Output, output)
			return nil
		},
	}
}

// forgetCmd creates the forget command.
func forgetCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "forget",
		Usage:     "Remove a document from the catalog (the file is kept)",
		ArgsUsage: "<doc-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Unindex(c.Context, db, ops.UnindexInput{DocID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse indexed documents in a web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind, port := cfg.WebBind, cfg.WebPort
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv, err := web.NewServer(db, cfg, Version, bind, port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// printTree draws the outline with box-drawing guides. Bookmarked nodes are
// starred and code nodes show their syntax.
func printTree(w io.Writer, out *ops.InspectOutput, showIDs bool) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	mark := color.New(color.FgHiYellow)

	_, _ = fmt.Fprintln(w, bold.Sprint(out.Path))

	// last[d] reports whether the most recent node at depth d is the last
	// of its siblings in the listing.
	last := map[int]bool{}
	for i, n := range out.Nodes {
		last[n.Depth] = isLastSibling(out.Nodes, i)

		var prefix strings.Builder
		for d := 0; d < n.Depth; d++ {
			if last[d] {
				prefix.WriteString("    ")
			} else {
				prefix.WriteString("│   ")
			}
		}
		if last[n.Depth] {
			prefix.WriteString("└── ")
		} else {
			prefix.WriteString("├── ")
		}

		line := prefix.String() + n.Name
		if n.Bookmarked {
			line += " " + mark.Sprint("*")
		}
		if n.Syntax != "" && n.Syntax != tree.SyntaxRichText {
			line += " " + faint.Sprintf("[%s]", n.Syntax)
		}
		if showIDs {
			line += " " + faint.Sprintf("#%d", n.ID)
		}
		_, _ = fmt.Fprintln(w, line)
	}
	if len(out.Repairs) > 0 {
		_, _ = fmt.Fprintln(w, color.New(color.FgRed).Sprintf("%d duplicate node ID(s) renumbered in memory; run 'arbor repair' to save", len(out.Repairs)))
	}
}

// isLastSibling reports whether no later node in the pre-order listing shares
// the parent of nodes[i].
func isLastSibling(nodes []ops.NodeSummary, i int) bool {
	depth := nodes[i].Depth
	for _, n := range nodes[i+1:] {
		if n.Depth < depth {
			return true
		}
		if n.Depth == depth {
			return false
		}
	}
	return true
}

// printSearch renders search hits as a table.
func printSearch(w io.Writer, out *ops.SearchOutput) {
	bold := color.New(color.Bold)
	if len(out.Items) == 0 {
		_, _ = fmt.Fprintln(w, "no matches")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.Wrap = true
	tbl.AddRow(bold.Sprint("NODE"), bold.Sprint("PATH"), bold.Sprint("DOCUMENT"), bold.Sprint("MATCH"))
	for _, item := range out.Items {
		tbl.AddRow(item.NodeID, item.Path, item.DocPath, plainSnippet(item.Snippet))
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(w, tbl)
	_, _ = fmt.Fprintf(w, "%d of %d\n", out.Pagination.Offset+len(out.Items), out.Pagination.Total)
}

// printDocuments renders indexed documents as a table.
func printDocuments(w io.Writer, out *ops.ListOutput) {
	bold := color.New(color.Bold)
	if len(out.Items) == 0 {
		_, _ = fmt.Fprintln(w, "no documents indexed")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("TITLE"), bold.Sprint("NODES"), bold.Sprint("PATH"))
	for _, doc := range out.Items {
		tbl.AddRow(doc.ID, doc.Title, doc.NodeCount, doc.Path)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// plainSnippet strips the highlight markup and entities from a search snippet.
func plainSnippet(s string) string {
	s = strings.NewReplacer("<b>", "", "</b>", "").Replace(s)
	return html.UnescapeString(s)
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var aErr *errors.ArborError
	if stderrors.As(err, &aErr) {
		msg := aErr.Message
		if prefix, ok := strings.CutSuffix(err.Error(), aErr.Error()); ok {
			msg = prefix + msg
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, msg), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdinLines returns the non-blank lines of stdin, trimmed.
func readStdinLines() ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
