package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var genpasswdCommand = &cli.Command{
	Name:      "genpasswd",
	Usage:     "append a VNC password to a password file",
	ArgsUsage: "<password-file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password to append; prompted on stdin if omitted"},
	},
	Action: genpasswdAction,
}

func genpasswdAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("genpasswd: missing <password-file> argument")
	}

	password := c.String("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("genpasswd: no password entered")
		}
		password = scanner.Text()
	}
	if password == "" {
		return fmt.Errorf("genpasswd: password cannot be empty")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, password); err != nil {
		return err
	}
	return nil
}
