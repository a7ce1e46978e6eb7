package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agent462/lanshare/internal/config"
	"github.com/agent462/lanshare/internal/discover"
	"github.com/agent462/lanshare/internal/logging"
	"github.com/agent462/lanshare/internal/ssh"
	"github.com/agent462/lanshare/internal/transfer"
	uiprogress "github.com/agent462/lanshare/internal/ui/progress"
	"github.com/agent462/lanshare/internal/ui/report"
	"github.com/agent462/lanshare/internal/workflow"
)

type options struct {
	fetch     bool
	shareEach bool
	shareAll  bool
	setup     bool

	configPath string
	verbose    bool
	notify     bool
	json       bool
	archive    string
	clear      bool
	yes        bool
}

func (o *options) workflow() bool {
	return o.fetch || o.shareEach || o.shareAll
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "lanshare",
		Short: "Hand out and collect files across a classroom network",
		Long: `lanshare copies folders between this computer and every reachable
student computer at once. Devices are found by probing a contiguous range
of addresses; each one gets its own local share and fetch folder.`,
		Example: `  lanshare --fetch --archive ~/abgabe.zip
  lanshare --share-each --clear
  lanshare --share-all -y`,
		Args: cobra.NoArgs,
		// An unrecognized flag alone selects no workflow and prints usage.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.workflow() && !opts.setup {
				return cmd.Usage()
			}
			return run(cmd.Context(), opts, in, out, errOut)
		},
	}

	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.Flags()
	f.BoolVar(&opts.fetch, "fetch", false, "collect every device's exchange folder")
	f.BoolVar(&opts.shareEach, "share-each", false, "hand each device its own share folder")
	f.BoolVar(&opts.shareAll, "share-all", false, "hand every device the common share-all folder")
	f.BoolVar(&opts.setup, "setup", false, "run the settings wizard")
	f.StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	f.BoolVar(&opts.notify, "notify", false, "also send desktop notifications")
	f.BoolVar(&opts.json, "json", false, "print notifications as JSON lines")
	f.StringVar(&opts.archive, "archive", "", "zip the fetch folder to this path (with --fetch)")
	f.BoolVar(&opts.clear, "clear", false, "empty delivered share folders (with --share-each)")
	f.BoolVarP(&opts.yes, "yes", "y", false, "do not ask before copying")
	cmd.MarkFlagsMutuallyExclusive("fetch", "share-each", "share-all")

	return cmd
}

func run(ctx context.Context, opts *options, in io.Reader, out, errOut io.Writer) error {
	if opts.archive != "" && !opts.fetch {
		return fmt.Errorf("--archive requires --fetch")
	}
	if opts.clear && !opts.shareEach {
		return fmt.Errorf("--clear requires --share-each")
	}

	level := "info"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.NewWithWriter(errOut, "lanshare", level)
	slog.SetDefault(logger)
	defer ssh.CloseAgent()

	path := opts.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := loadConfig(path, opts.setup, in, out)
	if err != nil {
		return err
	}
	if !opts.workflow() {
		return nil
	}

	if err := cfg.EnsureFolders(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg, opts, in, out, logger)
	switch {
	case opts.fetch:
		return runner.Fetch(ctx, workflow.FetchOptions{ArchivePath: opts.archive})
	case opts.shareEach:
		return runner.ShareEach(ctx, workflow.ShareOptions{Clear: opts.clear})
	default:
		return runner.ShareAll(ctx)
	}
}

// loadConfig reads the config at path. The wizard runs when forced or when
// the file is missing and stdin is a terminal.
func loadConfig(path string, forceSetup bool, in io.Reader, out io.Writer) (*config.Config, error) {
	if !forceSetup {
		cfg, err := config.Load(path)
		if err == nil || !errors.Is(err, config.ErrNotFound) || !isTerminal(in) {
			return cfg, err
		}
	}

	cfg, err := config.Setup(in, out)
	if err != nil {
		return nil, err
	}
	if err := config.Save(path, cfg); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Settings saved to %s\n", path)
	return cfg, nil
}

func newRunner(cfg *config.Config, opts *options, in io.Reader, out io.Writer, logger *slog.Logger) *workflow.Runner {
	n := cfg.Network

	var prober discover.Prober
	switch n.Probe {
	case config.ProbeTCP:
		prober = &discover.TCPProber{Port: n.RemotePort, Timeout: n.ProbeTimeout.Duration}
	default:
		prober = &discover.PingProber{Wait: n.ProbeTimeout.Duration, Logger: logger}
	}

	copier := newCopier(n, logger)

	interactive := isTerminal(in) && isTerminal(out)
	formatter := report.NewFormatter(opts.json, isTerminal(out) && !opts.json)

	var display workflow.Display = &uiprogress.Plain{Out: out}
	if interactive && !opts.json {
		display = &uiprogress.TUI{In: in, Out: out, Logger: logger}
	}

	var notifier workflow.Notifier = &report.Terminal{Out: out, Formatter: formatter}
	if opts.notify {
		notifier = report.Multi{notifier, &report.Desktop{}}
	}

	return workflow.New(cfg.Fleet(),
		discover.New(prober, discover.WithLogger(logger)),
		transfer.New(copier, transfer.WithLogger(logger)),
		workflow.WithConfirmer(&report.Prompt{In: in, Out: out, Formatter: formatter}),
		workflow.WithNotifier(notifier),
		workflow.WithDisplay(display),
		workflow.WithAssumeYes(opts.yes),
		workflow.WithLogger(logger),
	)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newCopier builds the transfer backend selected by network.transport.
func newCopier(n config.Network, logger *slog.Logger) transfer.Copier {
	if n.Transport != config.TransportSFTP {
		return &transfer.SCPCopier{Port: n.RemotePort, ConnectTimeout: n.ConnectTimeout.Duration, Logger: logger}
	}

	conf := ssh.ClientConfig{
		User:               n.User,
		Port:               n.RemotePort,
		AcceptUnknownHosts: n.Insecure,
		ConnectTimeout:     n.ConnectTimeout.Duration,
	}
	if n.IdentityFile != "" {
		conf.IdentityFiles = []string{n.IdentityFile}
	}
	return &transfer.SFTPCopier{
		Conf:   conf,
		Verify: n.Verify,
		OnProgress: func(host, file string, transferred, total int64) {
			if transferred == total {
				logger.Debug("file copied", "host", host, "file", file, "bytes", total)
			}
		},
		Logger: logger,
	}
}
