package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/notesync/internal"
	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/mcpserver"
	"github.com/starford/notesync/internal/models"
)

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "fetch",
			Usage: "Pull remote changes into the notes directory",
			Action: withApp(false, func(ctx context.Context, _ *cli.Command, a *internal.App) error {
				return a.Engine().Fetch(ctx)
			}),
		},
		{
			Name:  "send",
			Usage: "Push local changes, then pull",
			Action: withApp(false, func(ctx context.Context, _ *cli.Command, a *internal.App) error {
				return a.Engine().Send(ctx)
			}),
		},
		watchCommand(),
		{
			Name:      "list",
			Usage:     "List notes matching every term",
			ArgsUsage: "[#tag | word | \"filename fragment\"]...",
			Action: withApp(true, func(_ context.Context, cmd *cli.Command, a *internal.App) error {
				notes, err := a.Engine().Find(cmd.Args().Slice())
				if err != nil {
					return err
				}
				printNotes(stdout, notes)
				return nil
			}),
		},
		{
			Name:  "tags",
			Usage: "List tags with note counts",
			Action: withApp(true, func(_ context.Context, _ *cli.Command, a *internal.App) error {
				printTags(stdout, a.Engine().Tags())
				return nil
			}),
		},
		{
			Name:      "edit",
			Usage:     "Open matching notes in the editor, or create one named by a term containing a space",
			ArgsUsage: "[term]...",
			Action:    withApp(false, editAction),
		},
		{
			Name:      "capture",
			Usage:     "Store standard input as a new note, or as the body of the single matching note",
			ArgsUsage: "[term]...",
			Action: withApp(false, func(ctx context.Context, cmd *cli.Command, a *internal.App) error {
				text, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				_, err = a.Engine().Capture(ctx, cmd.Args().Slice(), string(text))
				return err
			}),
		},
		tagCommand("tag", "Add a tag to matching notes", (*engine.Engine).AddTag),
		tagCommand("untag", "Remove a tag from matching notes", (*engine.Engine).RemoveTag),
		termsCommand("trash", "Move matching notes to the trash", (*engine.Engine).Trash),
		termsCommand("restore", "Restore trashed notes matching every term (#tag or title fragment)", (*engine.Engine).Restore),
		termsCommand("purge", "Delete trashed notes matching every term permanently", (*engine.Engine).Purge),
		termsCommand("pin", "Pin matching notes", (*engine.Engine).Pin),
		termsCommand("unpin", "Unpin matching notes", (*engine.Engine).Unpin),
		termsCommand("publish", "Publish matching notes and print their URLs", (*engine.Engine).Publish),
		termsCommand("unpublish", "Stop publishing matching notes", (*engine.Engine).Unpublish),
		{
			Name:  "mcp",
			Usage: "Serve the notes as MCP tools over stdio",
			// Stdout carries the protocol, so file events are not printed.
			Action: withApp(true, func(_ context.Context, _ *cli.Command, a *internal.App) error {
				return mcpserver.New(a.Engine(), version).ServeStdio()
			}),
		},
	}
}

func editAction(ctx context.Context, cmd *cli.Command, a *internal.App) error {
	_, err := a.Engine().Edit(ctx, cmd.Args().Slice(), a.Editor())
	return err
}

// termsCommand builds a command running one lifecycle operation on the
// notes matched by its arguments.
func termsCommand(name, usage string, op func(*engine.Engine, context.Context, []string) ([]models.Note, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "term...",
		Action: withApp(false, func(ctx context.Context, cmd *cli.Command, a *internal.App) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("%s: need at least one term", name)
			}
			notes, err := op(a.Engine(), ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			printNotes(stdout, notes)
			return nil
		}),
	}
}

func tagCommand(name, usage string, op func(*engine.Engine, context.Context, string, []string) ([]models.Note, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "tag term...",
		Action: withApp(false, func(ctx context.Context, cmd *cli.Command, a *internal.App) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("%s: need a tag and at least one term", name)
			}
			tag := strings.TrimLeft(args[0], "#%")
			notes, err := op(a.Engine(), ctx, tag, args[1:])
			if err != nil {
				return err
			}
			printNotes(stdout, notes)
			return nil
		}),
	}
}
