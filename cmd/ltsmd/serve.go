package main

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/ltsm-go/ltsmcore/config"
	"github.com/ltsm-go/ltsmcore/internal/channelmux"
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/logging"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/session"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "accept RFB connections and serve them",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "ltsmd.yaml", Usage: "path to the YAML config file"},
	},
	Action: serveAction,
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if ids, err := cfg.ResolveCodecPriority(); err != nil {
		return err
	} else if len(ids) > 0 {
		codec.PriorityOrder = ids
	}

	logger := logging.New("ltsmd", nil)

	auths, err := buildAuthenticators(cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	logger.Printf("listening on %s", cfg.Listen)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go serveConn(conn, cfg, auths)
	}
}

// serveConn runs one connection's session to completion, with a
// per-connection demoDisplay standing in for a real capture backend.
func serveConn(conn net.Conn, cfg *config.Config, auths []protocol.Authenticator) {
	defer conn.Close()
	logger := logging.New(conn.RemoteAddr().String(), nil)
	display := newDemoDisplay(cfg.Desktop.Width, cfg.Desktop.Height, logger)

	stop := make(chan struct{})
	defer close(stop)
	go display.run(stop)

	sess := session.New(conn, session.Config{
		DesktopName:  cfg.DesktopName,
		Workers:      cfg.Workers,
		TileSize:     cfg.TileSize,
		Auths:        auths,
		AllowChannel: func(kind, target string, mode channelmux.Mode) bool { return true },
		ClipboardCaps: extclipboard.Capabilities{
			MaxSize: map[extclipboard.TypeMask]uint32{extclipboard.TypeText: 1 << 20},
		},
		Logger: logger,
	}, display, display, display, display)

	if err := sess.Serve(context.Background()); err != nil {
		logger.Printf("session ended: %v", err)
	}
}

func buildAuthenticators(cfg *config.Config) ([]protocol.Authenticator, error) {
	var auths []protocol.Authenticator

	if cfg.Security.PasswordFile != "" {
		passwords, err := config.LoadPasswords(cfg.Security.PasswordFile)
		if err != nil {
			return nil, err
		}
		auths = append(auths, protocol.VNCAuthenticator{Passwords: passwords})
	}

	if cfg.Security.VeNCrypt.CertFile != "" && cfg.Security.VeNCrypt.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Security.VeNCrypt.CertFile, cfg.Security.VeNCrypt.KeyFile)
		if err != nil {
			return nil, err
		}
		auths = append(auths, protocol.VeNCryptAuthenticator{
			Config: &tls.Config{Certificates: []tls.Certificate{cert}},
		})
	}

	if len(auths) == 0 {
		auths = append(auths, protocol.NoneAuthenticator{})
	}
	return auths, nil
}
