package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"remoteid"
	"remoteid/internal/model"
)

// fileConfig is the on-disk YAML shape for --config, mirroring
// remoteid.Config but with plain fields cobra/yaml can populate directly.
type fileConfig struct {
	Parser struct {
		UAVTimeoutMs        uint32 `yaml:"uav_timeout_ms"`
		EnableDeduplication bool   `yaml:"enable_deduplication"`
		EnableASTM          bool   `yaml:"enable_astm"`
		EnableASD           bool   `yaml:"enable_asd"`
		EnableCN            bool   `yaml:"enable_cn"`
	} `yaml:"parser"`
}

func loadFileConfig(path string) (model.ParserConfig, error) {
	cfg := model.DefaultParserConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	fc.Parser.UAVTimeoutMs = cfg.UAVTimeoutMs
	fc.Parser.EnableDeduplication = cfg.EnableDeduplication
	fc.Parser.EnableASTM = cfg.EnableASTM
	fc.Parser.EnableASD = cfg.EnableASD
	fc.Parser.EnableCN = cfg.EnableCN

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.UAVTimeoutMs = fc.Parser.UAVTimeoutMs
	cfg.EnableDeduplication = fc.Parser.EnableDeduplication
	cfg.EnableASTM = fc.Parser.EnableASTM
	cfg.EnableASD = fc.Parser.EnableASD
	cfg.EnableCN = fc.Parser.EnableCN
	return cfg, nil
}

// captureRecord is one line of a capture log: a hex-encoded payload plus
// the receiver metadata a RawFrame needs.
type captureRecord struct {
	PayloadHex string    `json:"payload_hex"`
	RSSI       int8      `json:"rssi"`
	Transport  string    `json:"transport"`
	Timestamp  time.Time `json:"timestamp"`
}

var transportsByName = map[string]model.Transport{
	"bt_legacy":   model.TransportBTLegacy,
	"bt_extended": model.TransportBTExtended,
	"wifi_beacon": model.TransportWiFiBeacon,
	"wifi_nan":    model.TransportWiFiNAN,
}

func parseTransport(s string) model.Transport {
	return transportsByName[s]
}

func main() {
	_ = godotenv.Load()

	var (
		configPath  string
		inputPath   string
		verbose     bool
		withAnomaly bool
	)

	logger := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "ridcli",
		Short: "Decode a Remote-ID capture log",
		Long: `ridcli replays a captured JSON-Lines Remote-ID log (one hex-encoded
frame per line) through the decoder, session tracker, and optional anomaly
detector, printing each decoded UAV sighting as it is produced.

Example usage:
  ridcli --input capture.jsonl --anomaly-check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			cfg, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}

			sessionID := uuid.New()
			logger.WithField("session", sessionID).Info("starting capture replay")

			in := os.Stdin
			if inputPath != "" {
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("opening input: %w", err)
				}
				defer f.Close()
				in = f
			}

			metricsReg := prometheus.NewRegistry()
			ridMetrics := remoteid.NewMetrics()
			remoteid.RegisterMetrics(ridMetrics, metricsReg)

			p := remoteid.New(remoteid.Config{Parser: cfg, Metrics: ridMetrics}, logger)

			var frames, decoded, failed uint64
			start := time.Now()

			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}

				var rec captureRecord
				if err := json.Unmarshal(line, &rec); err != nil {
					logger.WithError(err).Warn("skipping malformed record")
					continue
				}

				payload, err := hex.DecodeString(rec.PayloadHex)
				if err != nil {
					logger.WithError(err).Warn("skipping record with invalid hex payload")
					continue
				}

				frames++
				res := p.Parse(model.RawFrame{
					Payload:   payload,
					RSSI:      rec.RSSI,
					Transport: parseTransport(rec.Transport),
					Timestamp: rec.Timestamp,
				})

				if !res.Success {
					failed++
					if res.IsRemoteID {
						logger.WithField("error", res.Error).Debug("decode failed")
					}
					continue
				}
				decoded++

				fields := logrus.Fields{
					"id":       res.UAV.ID,
					"protocol": res.Protocol.String(),
					"rssi":     res.UAV.RSSI,
				}

				if withAnomaly {
					for _, a := range p.Analyze(res.UAV, float64(res.UAV.RSSI)) {
						fields["anomaly"] = a.Type.String()
						fields["severity"] = a.Severity.String()
					}
				}

				logger.WithFields(fields).Info("decoded frame")
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading capture log: %w", err)
			}

			logger.WithFields(logrus.Fields{
				"frames":  frames,
				"decoded": decoded,
				"failed":  failed,
				"tracked": p.GetActiveCount(),
				"elapsed": humanize.RelTime(start, time.Now(), "", ""),
			}).Info("replay complete")

			if families, err := metricsReg.Gather(); err == nil {
				logger.WithField("metric_families", len(families)).Debug("prometheus metrics collected")
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "capture log path (defaults to stdin)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file overriding parser defaults")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.Flags().BoolVar(&withAnomaly, "anomaly-check", false, "run each decoded UAV through the anomaly detector")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
