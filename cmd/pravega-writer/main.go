// Command pravega-writer is a thin CLI over the client Facade: create a
// segment, or append lines of stdin to one, in the style of
// examples/word-count/wordcountctl in the repo this module is grounded on.
package main

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/naveenkothamasu/pravega/pkg/client"
	"github.com/naveenkothamasu/pravega/pkg/transport"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

var Config = new(struct {
	Endpoint string `long:"endpoint" env:"PRAVEGA_ENDPOINT" default:"localhost:7777" description:"Segment store address"`
	Log      struct {
		Level string `long:"level" env:"LOG_LEVEL" default:"info" description:"Logging level"`
	} `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

type cmdCreate struct {
	Segment string `long:"segment" required:"true" description:"Segment name to create"`
}

func (cmd *cmdCreate) Execute([]string) error {
	var f = dialFacade()
	var created, err = f.CreateSegment(context.Background(), wire.SegmentName(cmd.Segment))
	if err != nil {
		return err
	}
	if created {
		log.WithField("segment", cmd.Segment).Info("segment created")
	} else {
		log.WithField("segment", cmd.Segment).Info("segment already exists")
	}
	return nil
}

type cmdAppend struct {
	Segment string `long:"segment" required:"true" description:"Segment name to append to"`
	File    string `long:"file" default:"-" description:"Input file to read, one append per line. Use - for stdin."`
}

func (cmd *cmdAppend) Execute([]string) error {
	var fin io.ReadCloser = os.Stdin
	if cmd.File != "-" {
		var f, err = os.Open(cmd.File)
		if err != nil {
			return err
		}
		fin = f
	}
	defer fin.Close()

	var ctx = context.Background()
	var f = dialFacade()
	var out = f.OpenForAppend(ctx, wire.SegmentName(cmd.Segment))

	var scanner = bufio.NewScanner(fin)
	var n int
	for scanner.Scan() {
		if _, err := out.Write(scanner.Bytes()); err != nil {
			return err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"segment": cmd.Segment, "lines": n}).Info("append complete")
	return out.Close()
}

func dialFacade() *client.Facade {
	var adapter = transport.NewGRPCAdapter(grpc.WithInsecure())
	return client.New(adapter, wire.Endpoint(Config.Endpoint))
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	// Apply the log level once flags are parsed, just before the command runs.
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if lvl, err := log.ParseLevel(Config.Log.Level); err == nil {
			log.SetLevel(lvl)
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	var _, err = parser.AddCommand("create", "Create a segment",
		"Create a new named segment", &cmdCreate{})
	must(err, "failed to add create command")

	_, err = parser.AddCommand("append", "Append to a segment",
		"Append newline-delimited input to a segment", &cmdAppend{})
	must(err, "failed to add append command")

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

func must(err error, msg string) {
	if err != nil {
		log.WithError(err).Fatal(msg)
	}
}
