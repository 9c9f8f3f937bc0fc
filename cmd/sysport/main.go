// Command sysport exercises each primitive of the library from the shell:
// one subcommand per primitive, mirroring the classic demo programs
// (spawn+wait, anonymous pipe, named channel server/client, semaphore,
// fault handler, Ctrl+C handler, file mapping).
package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nixpare/sysport/filemap"
	"github.com/nixpare/sysport/npipe"
	"github.com/nixpare/sysport/pipe"
	"github.com/nixpare/sysport/process"
	"github.com/nixpare/sysport/sem"
	"github.com/nixpare/sysport/sig"
)

// config carries the demo defaults, overridable via SYSPORT_* variables.
type config struct {
	ChannelName  string        `envconfig:"CHANNEL_NAME"`
	SemName      string        `envconfig:"SEM_NAME"`
	WaitDeadline time.Duration `envconfig:"WAIT_DEADLINE" default:"30s"`
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg config
	if err := envconfig.Process("sysport", &cfg); err != nil {
		logger.Fatal("reading environment", zap.Error(err))
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = defaultChannelName
	}
	if cfg.SemName == "" {
		cfg.SemName = "sysport.demo"
	}

	app := &cli.App{
		Name:  "sysport",
		Usage: "demonstrate the sysport OS primitives",
		Commands: []*cli.Command{
			execCommand(logger, &cfg),
			pipeCommand(logger),
			serveCommand(logger, &cfg),
			dialCommand(logger, &cfg),
			semCommand(logger, &cfg),
			faultCommand(logger),
			interruptCommand(logger),
			filemapCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
}

func execCommand(logger *zap.Logger, cfg *config) *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "spawn a program, poll it once, then wait for it",
		ArgsUsage: "<path> [args...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "kill", Usage: "kill the child instead of waiting it out"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("an executable path is required", 1)
			}
			path := c.Args().First()

			p, err := process.Spawn(path, c.Args().Slice(), nil)
			if err != nil {
				return err
			}
			logger.Info("child started", zap.Int("pid", p.ID()))

			if _, err := p.Wait(process.NoHang); err != nil {
				logger.Info("child still running after poll")
			}

			if c.Bool("kill") {
				if err := p.Kill(); err != nil {
					return err
				}
				logger.Info("kill requested")
			}

			st, err := p.Wait(process.Deadline(cfg.WaitDeadline))
			if err != nil {
				_ = p.Kill()
				_, _ = p.Wait(process.Block)
				return err
			}
			logger.Info("child terminated",
				zap.Int("code", st.Code), zap.Bool("signaled", st.Signaled))
			return nil
		},
	}
}

func pipeCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "round-trip bytes through an anonymous pipe",
		Action: func(c *cli.Context) error {
			r, w, err := pipe.Create()
			if err != nil {
				return err
			}

			if err := w.WriteAll([]byte("hello!")); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			buf := make([]byte, 64)
			for {
				n, err := r.Read(buf)
				if err != nil {
					return err
				}
				if n == 0 {
					logger.Info("end of stream")
					return r.Close()
				}
				logger.Info("read", zap.ByteString("data", buf[:n]))
			}
		},
	}
}

func serveCommand(logger *zap.Logger, cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "listen on a named channel and echo what clients send",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "accepts", Value: 1, Usage: "connections to accept before exiting"},
		},
		Action: func(c *cli.Context) error {
			name := cfg.ChannelName

			// clear a stale name from a previous unclean shutdown
			_ = npipe.Unlink(name)

			l, err := npipe.Listen(name)
			if err != nil {
				return err
			}
			defer func() {
				l.Close()
				npipe.Unlink(name)
			}()
			logger.Info("listening", zap.String("name", name))

			for i := 0; i < c.Int("accepts"); i++ {
				conn, err := l.Accept()
				if err != nil {
					return err
				}
				buf := make([]byte, 512)
				for {
					n, err := conn.Read(buf)
					if err != nil {
						conn.Close()
						return err
					}
					if n == 0 {
						break
					}
					logger.Info("received", zap.ByteString("data", buf[:n]))
				}
				if err := conn.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func dialCommand(logger *zap.Logger, cfg *config) *cli.Command {
	return &cli.Command{
		Name:      "dial",
		Usage:     "connect to a named channel and send a message",
		ArgsUsage: "[message]",
		Action: func(c *cli.Context) error {
			name := cfg.ChannelName
			msg := "hello!"
			if c.NArg() > 0 {
				msg = c.Args().First()
			}

			conn, err := npipe.Dial(name)
			if err != nil {
				return err
			}
			if err := conn.WriteAll([]byte(msg)); err != nil {
				conn.Close()
				return err
			}
			logger.Info("sent", zap.String("name", name), zap.String("data", msg))
			return conn.Close()
		},
	}
}

func semCommand(logger *zap.Logger, cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "sem",
		Usage: "enter a semaphore-protected region (run twice to see blocking)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "unlink", Usage: "remove the named semaphore and exit"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("unlink") {
				return sem.Unlink(cfg.SemName)
			}

			s, err := sem.Open(cfg.SemName, true, 1)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Wait(); err != nil {
				return err
			}
			logger.Info("entered protected region, press Enter to leave",
				zap.String("name", cfg.SemName))

			buf := make([]byte, 1)
			os.Stdin.Read(buf)

			return s.Post()
		},
	}
}

func faultCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fault",
		Usage: "subscribe to CPU faults and trigger one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: "segv", Usage: "segv or fpe"},
		},
		Action: func(c *cli.Context) error {
			reg := sig.NewRegistry()
			defer reg.Close()

			_, err := reg.Subscribe(func(ev sig.Event) {
				// fault context: record and get out
				fmt.Fprintf(os.Stderr, "fault: %s\n", ev)
			}, sig.AccessViolation, sig.Arithmetic)
			if err != nil {
				return err
			}

			var boom func()
			switch c.String("kind") {
			case "segv":
				boom = func() {
					var p *int
					_ = *p
				}
			case "fpe":
				boom = func() {
					d := len(os.Args) - len(os.Args) // zero
					fmt.Println(1 / d)
				}
			default:
				return cli.Exit("kind must be segv or fpe", 1)
			}

			err = reg.Trap(boom)
			logger.Info("fault trapped and delivered", zap.Error(err))
			return nil
		},
	}
}

func interruptCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "interrupt",
		Usage: "count until Ctrl+C",
		Action: func(c *cli.Context) error {
			reg := sig.NewRegistry()
			defer reg.Close()

			var quit atomic.Bool
			reg.SubscribeInterrupt(func() { quit.Store(true) })

			var n uint64
			for !quit.Load() {
				n++
				if n%(1<<28) == 0 {
					time.Sleep(time.Millisecond) // stay polite
				}
			}
			logger.Info("interrupted", zap.Uint64("count", n))
			return nil
		},
	}
}

func filemapCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "filemap",
		Usage:     "write through a shared file mapping, or read one",
		ArgsUsage: "<path> [text]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("a file path is required", 1)
			}

			f, err := os.OpenFile(c.Args().First(), os.O_RDWR|os.O_CREATE, 0o666)
			if err != nil {
				return err
			}
			defer f.Close()

			m, err := filemap.Map(f, 4096, true)
			if err != nil {
				return err
			}
			defer m.Close()

			if c.NArg() > 1 {
				copy(m.Bytes(), c.Args().Get(1))
				if err := m.Flush(); err != nil {
					return err
				}
				logger.Info("wrote through mapping")
				return nil
			}

			logger.Info("mapped contents", zap.ByteString("data", trimZero(m.Bytes())))
			return nil
		},
	}
}

func trimZero(b []byte) []byte {
	for i, v := range b {
		if v == 0 {
			return b[:i]
		}
	}
	return b
}
