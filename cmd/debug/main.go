package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/journal"
	"github.com/astromechza/pizza-relay/pkg/logging"
	"github.com/astromechza/pizza-relay/pkg/replica"
	"github.com/astromechza/pizza-relay/pkg/viz"
)

func main() {
	app := &cli.App{
		Name:  "debug",
		Usage: "inspect replica dumps and relay journals",
		Flags: logging.Flags(),
		Commands: []*cli.Command{
			{
				Name:      "replica",
				Usage:     "print the requests and change history of a dumped replica",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dot", Usage: "print the history as a graphviz digraph on stdout"},
				},
				Action: inspectReplica,
			},
			{
				Name:      "journal",
				Usage:     "print the most recent journal entries",
				ArgsUsage: "<db>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: inspectJournal,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logging.Fallback().Err(err).Msg("debug failed")
		os.Exit(1)
	}
}

func inspectReplica(c *cli.Context) error {
	log := logging.FromContext(c)
	if c.NArg() != 1 {
		return xerrors.New("expected one position argument: the file to read")
	}
	buff, err := os.ReadFile(c.Args().First())
	if err != nil {
		return xerrors.Errorf("failed to read input file: %w", err)
	}
	rep, err := replica.Load(buff)
	if err != nil {
		return err
	}

	reqs, err := rep.Requests()
	if err != nil {
		return err
	}
	for _, r := range reqs {
		log.Info().Str("request", r.String()).Msg("loaded")
	}
	comp, err := rep.Composition()
	if err != nil {
		return err
	}
	log.Info().Int("requests", comp.Requests).Int("slices", comp.TotalSlices).Int("approx", comp.Approx).Interface("toppings", comp.Toppings).Msg("order")

	doc, err := rep.Fork()
	if err != nil {
		return err
	}
	changes, labels, err := viz.History(doc)
	if err != nil {
		return err
	}
	for i, change := range changes {
		log.Info().Str("i", fmt.Sprintf("%4d", i)).Str("hash", change.Hash().String()).Str("actor", change.ActorID()).Msg(strings.ReplaceAll(labels[i], "\n", " | "))
	}

	if c.Bool("dot") {
		fmt.Println(`digraph "log" {`)
		for i, change := range changes {
			fmt.Printf("    \"%s\" [label=%q]\n", change.Hash(), labels[i])
			for _, hash := range change.Dependencies() {
				fmt.Printf("    \"%s\" -> \"%s\"\n", hash, change.Hash())
			}
		}
		fmt.Println("}")
	}
	return nil
}

func inspectJournal(c *cli.Context) error {
	log := logging.FromContext(c)
	if c.NArg() != 1 {
		return xerrors.New("expected one position argument: the journal database")
	}
	if _, err := os.Stat(c.Args().First()); err != nil {
		return xerrors.Errorf("failed to find journal: %w", err)
	}
	db, err := journal.OpenSQLite(c.Args().First())
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Recent(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		ev := log.Info().Str("id", e.ID).Time("at", e.At).Str("kind", e.Kind).Str("name", e.Name)
		if len(e.Payload) > 0 {
			ev = ev.RawJSON("payload", e.Payload)
		}
		ev.Msg("entry")
	}
	log.Info().Int("count", len(entries)).Msg("done")
	return nil
}
