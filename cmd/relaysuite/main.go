// Command relaysuite runs relaysuite's four worker modes: the binary
// file-transfer server and client, the binary transport proxy, and the
// HTTP/HTTPS content-filtering proxy. Subcommand layout follows
// docker-compose's ecs plugin root command (ecs/cmd/main/main.go):
// cobra.Command tree built in NewRootCmd, each mode its own subcommand.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relayforge/relaysuite/pkg/binproxy"
	"github.com/relayforge/relaysuite/pkg/blobstore"
	"github.com/relayforge/relaysuite/pkg/constants"
	"github.com/relayforge/relaysuite/pkg/contentfilter"
	"github.com/relayforge/relaysuite/pkg/fileclient"
	"github.com/relayforge/relaysuite/pkg/fileserver"
	"github.com/relayforge/relaysuite/pkg/httpproxy"
	"github.com/relayforge/relaysuite/pkg/logging"
	"github.com/relayforge/relaysuite/pkg/server"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd returns relaysuite's root command.
func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "relaysuite",
		Short: "File-transfer protocol server/client and content-filtering proxies",
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")

	cmd.AddCommand(
		ServerCommand(&logLevel),
		ClientCommand(&logLevel),
		ProxyCommand(&logLevel),
		HTTPProxyCommand(&logLevel),
	)
	return cmd
}

// ServerCommand runs the binary file-transfer server.
func ServerCommand(logLevel *string) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "server [port]",
		Short: "Run the binary file-transfer server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := constants.DefaultFileServerPort
			if len(args) == 1 {
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[0])
				}
				port = p
			}

			log := logging.New(os.Stderr, *logLevel)
			store := blobstore.NewFSStore(root)
			handler := fileserver.New(store, log)
			srv := server.New(fmt.Sprintf(":%d", port), handler, log)

			log.Infof("file server listening on :%d, root=%s", port, root)
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "directory files are stored under")
	return cmd
}

// ClientCommand runs the interactive file-transfer client REPL.
func ClientCommand(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <host> <port> [proxy-host] [proxy-port]",
		Short: "Interactive file-transfer client",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}

			log := logging.New(os.Stderr, *logLevel)
			ctx := cmd.Context()

			var conn net.Conn
			if len(args) == 4 {
				proxyHost := args[2]
				proxyPort, perr := strconv.Atoi(args[3])
				if perr != nil {
					return fmt.Errorf("invalid proxy port %q", args[3])
				}
				conn, err = dialViaBinProxy(ctx, proxyHost, proxyPort, host, port)
			} else {
				conn, err = net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			}
			if err != nil {
				return err
			}
			defer conn.Close()

			client := fileclient.New(conn)
			repl := fileclient.NewRepl(client, log)
			return repl.Run()
		},
	}
	return cmd
}

func dialViaBinProxy(ctx context.Context, proxyHost string, proxyPort int, destHost string, destPort int) (net.Conn, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(proxyHost, strconv.Itoa(proxyPort)))
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(destHost)
	if ip == nil {
		ips, lerr := net.DefaultResolver.LookupIP(ctx, "ip4", destHost)
		if lerr != nil || len(ips) == 0 {
			conn.Close()
			return nil, fmt.Errorf("could not resolve %s", destHost)
		}
		ip = ips[0]
	}
	hdr, err := binproxy.EncodeHeader(ip, uint16(destPort))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(hdr); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ProxyCommand runs the binary transport proxy.
func ProxyCommand(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy [port]",
		Short: "Run the binary transport proxy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := constants.DefaultBinaryProxyPort
			if len(args) == 1 {
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[0])
				}
				port = p
			}

			log := logging.New(os.Stderr, *logLevel)
			handler := binproxy.New(log)
			srv := server.New(fmt.Sprintf(":%d", port), handler, log)

			log.Infof("binary transport proxy listening on :%d", port)
			return srv.Serve(cmd.Context())
		},
	}
	return cmd
}

// HTTPProxyCommand runs the HTTP/HTTPS content-filtering proxy.
func HTTPProxyCommand(logLevel *string) *cobra.Command {
	var wordsFile string
	cmd := &cobra.Command{
		Use:   "http-proxy [port]",
		Short: "Run the HTTP/HTTPS content-filtering proxy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := constants.DefaultHTTPProxyPort
			if len(args) == 1 {
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[0])
				}
				port = p
			}

			words, err := contentfilter.LoadWordsFile(wordsFile)
			if err != nil && !os.IsNotExist(err) {
				return err
			}

			log := logging.New(os.Stderr, *logLevel)
			handler := httpproxy.New(contentfilter.New(words), log)
			srv := server.New(fmt.Sprintf(":%d", port), handler, log)

			log.Infof("http proxy listening on :%d, %d forbidden words loaded", port, len(words))
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&wordsFile, "forbidden-words", "forbidden.txt", "path to a newline-separated forbidden word list")
	return cmd
}

