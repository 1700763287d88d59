package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/link"
	"github.com/astromechza/pizza-relay/pkg/logging"
	"github.com/astromechza/pizza-relay/pkg/pizza"
	"github.com/astromechza/pizza-relay/pkg/protocol"
	"github.com/astromechza/pizza-relay/pkg/replica"
	"github.com/astromechza/pizza-relay/pkg/viz"
)

func main() {
	app := &cli.App{
		Name:  "client",
		Usage: "take part in a shared pizza order",
		Flags: append(logging.Flags(),
			&cli.StringFlag{Name: "server", Value: "ws://localhost:8081/socket", EnvVars: []string{"PIZZA_SERVER"}, Usage: "relay websocket url"},
			&cli.DurationFlag{Name: "timeout", Value: link.DefaultTimeout, Usage: "connect timeout"},
		),
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "follow the order as it changes",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "render", Usage: "render the replica history to svg on exit"},
				},
				Action: watch,
			},
			{
				Name:  "upsert",
				Usage: "add or change your request, prompting for anything not given",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.IntFlag{Name: "slices", Value: pizza.DefaultSlices, Usage: "0 removes the request"},
					&cli.BoolFlag{Name: "approx", Usage: "slice count is approximate"},
					&cli.StringSliceFlag{Name: "topping"},
					&cli.DurationFlag{Name: "wait", Value: 3 * time.Second, Usage: "how long to wait for the relay to confirm"},
				},
				Action: upsert,
			},
			{
				Name:  "delete",
				Usage: "remove a request",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.DurationFlag{Name: "wait", Value: 3 * time.Second},
				},
				Action: remove,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logging.Fallback().Err(err).Msg("client failed")
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
		signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-exit:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(exit)
	}()
	return ctx, cancel
}

func watch(c *cli.Context) error {
	log := logging.FromContext(c)
	rep, err := replica.New(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		if err := connectAndWatch(ctx, c, log, rep); err != nil {
			log.Err(err).Msg("lost link to relay")
		}
		select {
		case <-t.C:
			continue
		case <-ctx.Done():
		}
		break
	}
	log.Info().Msg("stopping watch")

	tf := filepath.Join(os.TempDir(), rep.ActorID()+".pizza")
	if err := os.WriteFile(tf, rep.Save(), 0o644); err != nil {
		return xerrors.Errorf("failed to dump replica: %w", err)
	}
	log.Info().Str("path", tf).Msg("dumped replica")

	if c.Bool("render") {
		doc, err := rep.Fork()
		if err != nil {
			return err
		}
		svgPath, err := viz.RenderToTemp(doc)
		if err != nil {
			return xerrors.Errorf("failed to render: %w", err)
		}
		log.Info().Str("path", "file://"+svgPath).Msg("rendered")
	}
	return nil
}

func connectAndWatch(ctx context.Context, c *cli.Context, log zerolog.Logger, rep *replica.Replica) error {
	conn, err := link.Dial(ctx, c.String("server"), c.Duration("timeout"))
	if err != nil {
		return err
	}
	return link.Sync(ctx, log, conn, func(env protocol.Envelope) error {
		if err := rep.Apply(env); err != nil {
			log.Warn().Err(err).Str("event", env.Event).Msg("ignored event")
			return nil
		}
		if env.Event == protocol.EventStatus {
			log.Info().Int("connections", rep.Connections()).Msg("status")
			return nil
		}
		reqs, err := rep.Requests()
		if err != nil {
			return err
		}
		for _, r := range reqs {
			log.Info().Str("request", r.String()).Msg(env.Event)
		}
		comp := pizza.Compose(reqs)
		log.Info().Int("requests", comp.Requests).Int("slices", comp.TotalSlices).Int("approx", comp.Approx).Interface("toppings", comp.Toppings).Msg("order")
		return nil
	}, nil)
}

func upsert(c *cli.Context) error {
	raw := pizza.RawRequest{
		Name:     c.String("name"),
		Slices:   c.Int("slices"),
		Approx:   c.Bool("approx"),
		Toppings: c.StringSlice("topping"),
	}
	if raw.Name == "" {
		if err := prompt(&raw); err != nil {
			return err
		}
	}
	frame, err := link.Upsert(raw)
	if err != nil {
		return err
	}
	want := protocol.EventRequest
	if raw.IsDeletion() {
		want = protocol.EventDelete
	}
	return sendAndConfirm(c, frame, want, raw.Name)
}

func remove(c *cli.Context) error {
	frame, err := link.Delete(c.String("name"))
	if err != nil {
		return err
	}
	return sendAndConfirm(c, frame, protocol.EventDelete, c.String("name"))
}

// sendAndConfirm sends one frame and waits for the broadcast that carries it back. Rejections are silent on the
// relay side, so a missing confirmation is the only sign.
func sendAndConfirm(c *cli.Context, frame []byte, event, name string) error {
	log := logging.FromContext(c)
	ctx, cancel := signalContext()
	defer cancel()

	conn, err := link.Dial(ctx, c.String("server"), c.Duration("timeout"))
	if err != nil {
		return err
	}

	ctx, cancelWait := context.WithTimeout(ctx, c.Duration("wait"))
	defer cancelWait()

	outbox := make(chan []byte, 1)
	outbox <- frame
	confirmed := false
	err = link.Sync(ctx, log, conn, func(env protocol.Envelope) error {
		if env.Event != event {
			return nil
		}
		switch event {
		case protocol.EventRequest:
			req, err := env.Request()
			if err != nil || req.Name != name {
				return nil
			}
			log.Info().Str("request", req.String()).Msg("confirmed")
		case protocol.EventDelete:
			del, err := env.Deletion()
			if err != nil || del.Name != name {
				return nil
			}
			log.Info().Str("name", del.Name).Msg("deleted")
		}
		confirmed = true
		return link.ErrDone
	}, outbox)
	if err != nil {
		return err
	}
	if !confirmed {
		return xerrors.Errorf("relay did not confirm %s for %q: the name may be missing or the order full", event, name)
	}
	return nil
}
