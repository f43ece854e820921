package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/classmarkets/dnstracer"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dnstracer: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// usageError marks an error that should exit with code 1 rather than the
// nagios code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// nagiosInconsistentError signals --nagios found inconsistencies; main
// translates it to exit code 2.
type nagiosInconsistentError struct{ count int }

func (e nagiosInconsistentError) Error() string {
	return fmt.Sprintf("%d inconsistencies in the dns graph, run with -e -g png for details", e.count)
}

func exitCodeFor(err error) int {
	if _, ok := err.(nagiosInconsistentError); ok {
		return 2
	}
	return 1
}

type cliFlags struct {
	quiet                    bool
	qtype                    string
	dump                     string
	load                     string
	format                   string
	graph                    string
	display                  bool
	output                   string
	skip                     []string
	errorsOnly               bool
	nagios                   bool
	traceMissingGlue         bool
	evenTraceMGtldServersNet bool
}

func newRootCommand() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:           "dnstracer [flags] NAME",
		Short:         "trace the recursive DNS resolution path for a name",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &flags, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress diagnostic log output")
	f.StringVarP(&flags.qtype, "type", "t", "A", "record type to query (A, AAAA, MX, TXT, SRV, SOA, PTR)")
	f.StringVarP(&flags.dump, "dump", "d", "", "dump the trace graph to FILE")
	f.StringVarP(&flags.load, "load", "l", "", "load a previously dumped graph from FILE instead of tracing")
	f.StringVarP(&flags.format, "format", "f", "yaml", "dump/load format (yaml, json)")
	f.StringVarP(&flags.graph, "graph", "g", "", "render the graph with dot(1) in the given Graphviz output format")
	f.BoolVarP(&flags.display, "display", "D", false, "display the rendered graph with display(1)")
	f.StringVarP(&flags.output, "output", "o", "", "filename for the rendered graph")
	f.StringArrayVarP(&flags.skip, "skip", "s", nil, "zone to omit from the graph (repeatable)")
	f.BoolVarP(&flags.errorsOnly, "errors-only", "e", false, "only show error nodes and edges")
	f.BoolVarP(&flags.nagios, "nagios", "n", false, "function as a nagios plugin: exit 2 if inconsistencies are found")
	f.BoolVarP(&flags.traceMissingGlue, "trace-missing-glue", "T", false, "perform full traces for nameservers we received no glue for")
	f.BoolVar(&flags.evenTraceMGtldServersNet, "even-trace-m-gtld-servers-net", false, "don't special-case m.gtld-servers.net when tracing missing glue")

	return cmd
}

func run(ctx context.Context, flags *cliFlags, args []string) error {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if flags.quiet || flags.nagios {
		log.SetLevel(logrus.ErrorLevel)
	}

	if flags.load != "" {
		if len(args) != 0 {
			return usageError{fmt.Errorf("you're loading a dump, so no extra arguments are allowed")}
		}
	} else if len(args) != 1 {
		return usageError{fmt.Errorf("you must specify exactly one name to trace")}
	}

	if flags.graph == "" && flags.dump == "" && !flags.nagios {
		return usageError{fmt.Errorf("at least one of --dump, --graph or --nagios is required")}
	}

	qtype, err := dnstracer.ParseQType(flags.qtype)
	if err != nil {
		return usageError{err}
	}

	for i, z := range flags.skip {
		if !strings.HasSuffix(z, ".") {
			flags.skip[i] = z + "."
		}
	}

	var root *dnstracer.Zone

	if flags.load != "" {
		root, err = loadGraph(flags.load, flags.format)
		if err != nil {
			return err
		}
	} else {
		name := args[0]
		if qtype == dns.TypePTR {
			if arpa, ok := reverseArpaName(name); ok {
				name = arpa
			}
		}

		tracer := &dnstracer.Tracer{
			Logger:                   log,
			TimeoutPolicy:            dnstracer.DefaultTimeoutPolicy(),
			CachePolicy:              dnstracer.DefaultCachePolicy(),
			TraceMissingGlue:         flags.traceMissingGlue,
			EvenTraceMGtldServersNet: flags.evenTraceMGtldServersNet,
		}

		root, err = tracer.Trace(ctx, name, flags.qtype)
		if err != nil {
			return err
		}
	}

	if flags.dump != "" {
		if err := dumpGraph(root, flags.dump, flags.format); err != nil {
			return err
		}
	}

	if flags.graph != "" {
		if err := renderGraph(root, flags); err != nil {
			return err
		}
	}

	if flags.nagios {
		lines := root.Graph(nil, true)
		n := 0
		for _, line := range lines {
			if strings.Contains(line, "->") {
				n++
			}
		}
		if n > 0 {
			return nagiosInconsistentError{count: n}
		}
		fmt.Println("DNS trace graph consistent")
	}

	return nil
}

// reverseArpaName converts an IPv4 or IPv6 literal to its .in-addr.arpa /
// .ip6.arpa form. Returns ok=false (leaving name untouched) if name isn't a
// valid IP literal, matching the source's "try, fall back to the literal
// name" behavior for --type PTR.
func reverseArpaName(name string) (string, bool) {
	ip := net.ParseIP(name)
	if ip == nil {
		return "", false
	}
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0]), true
	}
	v6 := ip.To16()
	var sb strings.Builder
	for i := len(v6) - 1; i >= 0; i-- {
		sb.WriteString(strconv.FormatInt(int64(v6[i]&0xf), 16))
		sb.WriteByte('.')
		sb.WriteString(strconv.FormatInt(int64(v6[i]>>4), 16))
		sb.WriteByte('.')
	}
	sb.WriteString("ip6.arpa.")
	return sb.String(), true
}

func dumpGraph(root *dnstracer.Zone, path, format string) error {
	var data []byte
	var err error
	switch format {
	case "json":
		data, err = dnstracer.SerializeJSON(root)
	default:
		data, err = dnstracer.SerializeYAML(root)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func loadGraph(path, format string) (*dnstracer.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return dnstracer.DeserializeJSON(data)
	default:
		return dnstracer.DeserializeYAML(data)
	}
}

func renderGraph(root *dnstracer.Zone, flags *cliFlags) error {
	lines := root.Graph(flags.skip, flags.errorsOnly)
	dotSource := strings.Join(lines, "\n")

	dotArgs := []string{"-T", flags.graph}
	if flags.output != "" {
		dotArgs = append(dotArgs, "-o", flags.output)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dotCmd := exec.CommandContext(ctx, "dot", dotArgs...)
	dotCmd.Stdin = strings.NewReader(dotSource)

	if !flags.display {
		dotCmd.Stdout = os.Stdout
		dotCmd.Stderr = os.Stderr
		return dotCmd.Run()
	}

	displayCmd := exec.CommandContext(ctx, "display", "-")
	pipe, err := dotCmd.StdoutPipe()
	if err != nil {
		return err
	}
	displayCmd.Stdin = pipe
	displayCmd.Stdout = os.Stdout
	displayCmd.Stderr = os.Stderr

	if err := dotCmd.Start(); err != nil {
		return err
	}
	if err := displayCmd.Start(); err != nil {
		return err
	}
	if err := dotCmd.Wait(); err != nil {
		return err
	}
	return displayCmd.Wait()
}
