package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Setup asks for every setting on out, reading answers line by line from
// in. An empty answer keeps the bracketed default. Invalid numbers and
// addresses are asked again. The returned config is validated but not saved.
func Setup(in io.Reader, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	w := &wizard{in: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, "No settings found, creating them now:")

	var err error
	n := &cfg.Network
	if n.FirstIP, err = w.ask("IP of the first client", n.FirstIP, func(s string) error {
		if net.ParseIP(s).To4() == nil {
			return fmt.Errorf("%q is not an IPv4 address", s)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if n.NumClients, err = w.askInt("Number of clients", n.NumClients, 1, 65536); err != nil {
		return nil, err
	}
	if n.User, err = w.ask("Remote username", n.User, nil); err != nil {
		return nil, err
	}
	if n.RemotePort, err = w.askInt("Remote SSH port", n.RemotePort, 1, 65535); err != nil {
		return nil, err
	}

	f := &cfg.Folders
	questions := []struct {
		prompt string
		field  *string
	}{
		{"Prefix of local folders per device", &f.Prefix},
		{"Remote exchange folder", &f.Exchange},
		{"Local share base folder", &f.Share},
		{"Local fetch base folder", &f.Fetch},
		{"Local share-all folder", &f.ShareAll},
	}
	for _, q := range questions {
		if *q.field, err = w.ask(q.prompt, *q.field, nil); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type wizard struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask prompts until check accepts the answer. A nil check accepts anything.
func (w *wizard) ask(prompt, def string, check func(string) error) (string, error) {
	for {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
		if !w.in.Scan() {
			if err := w.in.Err(); err != nil {
				return "", fmt.Errorf("read answer: %w", err)
			}
			return "", fmt.Errorf("setup aborted: %w", io.ErrUnexpectedEOF)
		}
		answer := strings.TrimSpace(w.in.Text())
		if answer == "" {
			answer = def
		}
		if check == nil {
			return answer, nil
		}
		if err := check(answer); err != nil {
			fmt.Fprintf(w.out, "  %v, please try again\n", err)
			continue
		}
		return answer, nil
	}
}

func (w *wizard) askInt(prompt string, def, lo, hi int) (int, error) {
	var v int
	_, err := w.ask(prompt, strconv.Itoa(def), func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d is not between %d and %d", n, lo, hi)
		}
		v = n
		return nil
	})
	return v, err
}
