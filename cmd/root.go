package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/segfetch/internal/engine"
	"github.com/tanq16/segfetch/internal/output"
	"github.com/tanq16/segfetch/internal/scheduler"
	"github.com/tanq16/segfetch/internal/utils"
)

var (
	connections   int
	workers       int
	timeout       time.Duration
	kaTimeout     time.Duration
	retries       int
	chunkSize     int
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	jsonOutput    bool
	debug         bool
)

var SegfetchVersion = "dev"

var globalHTTPConfig utils.HTTPClientConfig

var rootCmd = &cobra.Command{
	Use:     "segfetch",
	Short:   "Segfetch downloads segmented media in parallel",
	Version: SegfetchVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		globalHTTPConfig = buildHTTPConfig()
		log.Debug().Str("op", "cmd/root").Msgf("Using %d connections, %d workers, %s timeout", connections, workers, timeout)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", utils.DefaultConnections, "Segments downloaded in parallel per job (above 8 enables high-thread-mode)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of jobs to run in parallel")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", utils.DefaultAttemptTimeout, "Timeout per segment attempt (eg. 5s, 1m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().IntVarP(&retries, "retries", "r", utils.DefaultMaxAttempts, "Attempts per segment, including the first")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", utils.DefaultChunkSize, "Read buffer size in bytes")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS or SOCKS5 proxy URL (e.g., proxy.example.com:8080, socks5://127.0.0.1:1080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print progress events as JSON lines instead of the live display")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}

func buildHTTPConfig() utils.HTTPClientConfig {
	agent := userAgent
	if agent == "randomize" {
		agent = utils.GetRandomUserAgent()
	}
	proxy, username, password := proxyURL, proxyUsername, proxyPassword
	// credentials embedded in the proxy URL are moved to the explicit fields
	parsedProxy, err := u.Parse(proxy)
	if proxy != "" && err == nil && parsedProxy.User != nil && username == "" {
		username = parsedProxy.User.Username()
		if p, set := parsedProxy.User.Password(); set {
			password = p
		}
		parsedProxy.User = nil
		proxy = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:        timeout,
		KATimeout:      kaTimeout,
		ProxyURL:       proxy,
		ProxyUsername:  username,
		ProxyPassword:  password,
		UserAgent:      agent,
		Headers:        utils.ParseHeaderArgs(headers),
		HighThreadMode: connections > utils.HighThreadThreshold,
	}
}

func schedulerConfig() scheduler.Config {
	opts := engine.DefaultOptions()
	opts.HTTPClientConfig = globalHTTPConfig
	opts.Retry.MaxAttempts = retries
	opts.ChunkSize = chunkSize
	return scheduler.Config{
		Workers:     workers,
		Connections: connections,
		Options:     opts,
		JSON:        jsonOutput,
	}
}

func runJobs(jobs []utils.SegmentJob) {
	log.Debug().Str("op", "cmd/root").Msgf("Starting scheduler with %d jobs", len(jobs))
	if err := scheduler.Run(jobs, schedulerConfig()); err != nil {
		if !jsonOutput {
			fmt.Println()
			output.PrintError("Encountered failed segment(s)")
		}
		log.Debug().Str("op", "cmd/root").Msgf("Scheduler finished with error: %v", err)
		os.Exit(1)
	}
}
