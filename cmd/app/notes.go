package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/parser"
)

// withService opens the configured store for the duration of fn.
func withService(cmd *cli.Command, fn func(*noteservice.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, _, closeStore, err := internal.OpenService(cfg.Storage, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(svc)
}

func printNotes(w io.Writer, ns []models.Note) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIN\tMODIFIED\tTITLE")
	for _, n := range ns {
		pin := ""
		if n.IsPinned {
			pin = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			n.ID, pin, n.LastModified.Local().Format("2006-01-02 15:04"), oneLine(n.Title))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return s
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "Manage notes from the command line",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notes, pinned first",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withService(cmd, func(svc *noteservice.Service) error {
						return printNotes(os.Stdout, svc.List(ctx))
					})
				},
			},
			{
				Name:      "search",
				Usage:     "List notes whose title or content contains the query",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					query := strings.Join(cmd.Args().Slice(), " ")
					return withService(cmd, func(svc *noteservice.Service) error {
						return printNotes(os.Stdout, svc.Search(ctx, query))
					})
				},
			},
			{
				Name:  "add",
				Usage: "Create a note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title", Required: true},
					&cli.StringFlag{Name: "content", Usage: "Note body; read from stdin when omitted"},
					&cli.StringFlag{Name: "image", Usage: "Path to an image to attach"},
				},
				Action: addNote,
			},
			{
				Name:      "pin",
				Usage:     "Toggle the pinned flag of a note",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withService(cmd, func(svc *noteservice.Service) error {
						n, err := svc.TogglePin(ctx, id)
						if err != nil {
							return err
						}
						state := "unpinned"
						if n.IsPinned {
							state = "pinned"
						}
						fmt.Printf("%s %s\n", state, n.ID)
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a note",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return withService(cmd, func(svc *noteservice.Service) error {
						if err := svc.Delete(ctx, id); err != nil {
							return err
						}
						fmt.Printf("deleted %s\n", id)
						return nil
					})
				},
			},
			{
				Name:      "import",
				Usage:     "Import Markdown files as notes; patterns such as 'notes/**/*.md' are expanded",
				ArgsUsage: "<file-or-pattern>...",
				Action:    importNotes,
			},
		},
	}
}

func addNote(ctx context.Context, cmd *cli.Command) error {
	content := cmd.String("content")
	if content == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = strings.TrimSpace(string(data))
	}

	var image []byte
	if path := cmd.String("image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		image = data
	}

	return withService(cmd, func(svc *noteservice.Service) error {
		n, err := svc.Create(ctx, cmd.String("title"), content, image)
		if err != nil {
			return err
		}
		fmt.Println(n.ID)
		return nil
	})
}

func importNotes(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("no files given")
	}
	files, err := expandPatterns(cmd.Args().Slice())
	if err != nil {
		return err
	}

	return withService(cmd, func(svc *noteservice.Service) error {
		var failed []string
		for _, path := range files {
			if err := importFile(ctx, svc, path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed = append(failed, filepath.Base(path))
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed: %s", len(failed), len(files), strings.Join(failed, ", "))
		}
		return nil
	})
}

// expandPatterns resolves glob arguments (with ** support) and keeps plain
// paths as given. Each file appears once, in argument order.
func expandPatterns(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func importFile(ctx context.Context, svc *noteservice.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	n, err := svc.Import(ctx, res.Title, res.Content, res.Created, res.Pinned)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", n.ID, oneLine(n.Title))
	return nil
}

func darkModeCommand() *cli.Command {
	return &cli.Command{
		Name:      "dark-mode",
		Usage:     "Show or set the dark theme preference",
		ArgsUsage: "[on|off]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			arg := strings.ToLower(cmd.Args().First())
			return withService(cmd, func(svc *noteservice.Service) error {
				switch arg {
				case "":
				case "on", "true":
					svc.SetDarkMode(ctx, true)
				case "off", "false":
					svc.SetDarkMode(ctx, false)
				default:
					return fmt.Errorf("expected on or off, got %q", arg)
				}
				if svc.DarkMode(ctx) {
					fmt.Println("on")
				} else {
					fmt.Println("off")
				}
				return nil
			})
		},
	}
}
