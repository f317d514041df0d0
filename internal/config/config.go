package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	TTS       TTSConfig       `mapstructure:"tts"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Server    ServerConfig    `mapstructure:"server"`
	Queue     QueueConfig     `mapstructure:"queue"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	OutputDir  string `mapstructure:"output_dir"`
	ScratchDir string `mapstructure:"scratch_dir"`
	UploadDir  string `mapstructure:"upload_dir"`
}

type PDFConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

type TTSConfig struct {
	Backend        string   `mapstructure:"backend"`
	Command        string   `mapstructure:"command"`
	ExtraArgs      []string `mapstructure:"extra_args"`
	ChunkTimeout   int      `mapstructure:"chunk_timeout"`
	ToneSampleRate int      `mapstructure:"tone_sample_rate"`
	MaxChunkChars  int      `mapstructure:"max_chunk_chars"`
}

type OpenAIConfig struct {
	APIKey  string  `mapstructure:"api_key"`
	BaseURL string  `mapstructure:"base_url"`
	Model   string  `mapstructure:"model"`
	Voice   string  `mapstructure:"voice"`
	Speed   float64 `mapstructure:"speed"`
	Timeout int     `mapstructure:"timeout"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	Workers         int    `mapstructure:"workers"`
	AudioURLPrefix  string `mapstructure:"audio_url_prefix"`
	ServeAudio      bool   `mapstructure:"serve_audio"`
}

type QueueConfig struct {
	Transport  string `mapstructure:"transport"`
	Workers    int    `mapstructure:"workers"`
	JobTimeout int    `mapstructure:"job_timeout"`
}

type NATSConfig struct {
	URL        string `mapstructure:"url"`
	Embedded   bool   `mapstructure:"embedded"`
	Port       int    `mapstructure:"port"`
	StoreDir   string `mapstructure:"store_dir"`
	Stream     string `mapstructure:"stream"`
	Subject    string `mapstructure:"subject"`
	QueueGroup string `mapstructure:"queue_group"`
}

type StoreConfig struct {
	Driver         string `mapstructure:"driver"`
	Path           string `mapstructure:"path"`
	RetentionHours int    `mapstructure:"retention_hours"`
}

type TelemetryConfig struct {
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			OutputDir:  "static/audio",
			ScratchDir: "",
			UploadDir:  "data/uploads",
		},
		PDF: PDFConfig{
			MaxPages: 5,
		},
		TTS: TTSConfig{
			Backend:        BackendCLI,
			Command:        "tts --model_name tts_models/en/ljspeech/vits",
			ExtraArgs:      nil,
			ChunkTimeout:   120,
			ToneSampleRate: 22050,
			MaxChunkChars:  0,
		},
		OpenAI: OpenAIConfig{
			APIKey:  "",
			BaseURL: "https://api.openai.com/v1",
			Model:   "tts-1",
			Voice:   "coral",
			Speed:   1.0,
			Timeout: 90,
		},
		Server: ServerConfig{
			ListenAddr:      ":8000",
			MaxUploadBytes:  32 << 20,
			RequestTimeout:  600,
			ShutdownTimeout: 30,
			Workers:         2,
			AudioURLPrefix:  "/audio/",
			ServeAudio:      true,
		},
		Queue: QueueConfig{
			Transport:  TransportLocal,
			Workers:    1,
			JobTimeout: 1800,
		},
		NATS: NATSConfig{
			URL:        "nats://127.0.0.1:4222",
			Embedded:   false,
			Port:       4222,
			StoreDir:   "data/nats",
			Stream:     "PDF2AUDIO",
			Subject:    "pdf2audio.tasks",
			QueueGroup: "pdf2audio-workers",
		},
		Store: StoreConfig{
			Driver:         StoreMemory,
			Path:           "data/jobs.db",
			RetentionHours: 24,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "none",
			OTLPEndpoint: "",
			OTLPInsecure: false,
			ServiceName:  "pdf2audio",
		},
		LogLevel: "info",
	}
}

// flagKeys maps each registered flag name to its nested config key.
var flagKeys = map[string]string{
	"output-dir":              "paths.output_dir",
	"scratch-dir":             "paths.scratch_dir",
	"upload-dir":              "paths.upload_dir",
	"max-pages":               "pdf.max_pages",
	"backend":                 "tts.backend",
	"tts-command":             "tts.command",
	"tts-arg":                 "tts.extra_args",
	"chunk-timeout":           "tts.chunk_timeout",
	"tone-sample-rate":        "tts.tone_sample_rate",
	"max-chunk-chars":         "tts.max_chunk_chars",
	"openai-base-url":         "openai.base_url",
	"openai-model":            "openai.model",
	"openai-voice":            "openai.voice",
	"openai-speed":            "openai.speed",
	"openai-timeout":          "openai.timeout",
	"server-listen-addr":      "server.listen_addr",
	"max-upload-bytes":        "server.max_upload_bytes",
	"request-timeout":         "server.request_timeout",
	"shutdown-timeout":        "server.shutdown_timeout",
	"workers":                 "server.workers",
	"audio-url-prefix":        "server.audio_url_prefix",
	"serve-audio":             "server.serve_audio",
	"queue-transport":         "queue.transport",
	"queue-workers":           "queue.workers",
	"job-timeout":             "queue.job_timeout",
	"nats-url":                "nats.url",
	"nats-embedded":           "nats.embedded",
	"nats-port":               "nats.port",
	"store-driver":            "store.driver",
	"store-path":              "store.path",
	"retention-hours":         "store.retention_hours",
	"telemetry-exporter":      "telemetry.exporter",
	"telemetry-otlp-endpoint": "telemetry.otlp_endpoint",
	"log-level":               "log_level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("output-dir", defaults.Paths.OutputDir, "Directory for generated audio files")
	fs.String("scratch-dir", defaults.Paths.ScratchDir, "Directory for per-chunk scratch audio (empty = OS temp dir)")
	fs.String("upload-dir", defaults.Paths.UploadDir, "Directory for PDFs handed to remote workers")
	fs.Int("max-pages", defaults.PDF.MaxPages, "Number of leading PDF pages to read")
	fs.String("backend", defaults.TTS.Backend, "Synthesis backend (cli|openai|tone)")
	fs.String("tts-command", defaults.TTS.Command, "Local TTS command line for the cli backend")
	fs.StringArray("tts-arg", defaults.TTS.ExtraArgs, "Pass-through TTS flag in key=value form (repeatable)")
	fs.Int("chunk-timeout", defaults.TTS.ChunkTimeout, "Per-chunk synthesis timeout in seconds (0 = none)")
	fs.Int("tone-sample-rate", defaults.TTS.ToneSampleRate, "Sample rate of the tone backend")
	fs.Int("max-chunk-chars", defaults.TTS.MaxChunkChars, "Re-split paragraphs longer than this at sentence boundaries (0 disables)")
	fs.String("openai-base-url", defaults.OpenAI.BaseURL, "OpenAI API base URL")
	fs.String("openai-model", defaults.OpenAI.Model, "OpenAI speech model")
	fs.String("openai-voice", defaults.OpenAI.Voice, "OpenAI voice")
	fs.Float64("openai-speed", defaults.OpenAI.Speed, "OpenAI speech speed")
	fs.Int("openai-timeout", defaults.OpenAI.Timeout, "OpenAI request timeout in seconds")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int64("max-upload-bytes", defaults.Server.MaxUploadBytes, "Maximum accepted PDF upload size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Synchronous conversion timeout in seconds (0 = none)")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synchronous conversions")
	fs.String("audio-url-prefix", defaults.Server.AudioURLPrefix, "URL prefix reported for finished audio files")
	fs.Bool("serve-audio", defaults.Server.ServeAudio, "Serve the output directory under /audio/")
	fs.String("queue-transport", defaults.Queue.Transport, "Task transport (local|nats)")
	fs.Int("queue-workers", defaults.Queue.Workers, "Background workers per process")
	fs.Int("job-timeout", defaults.Queue.JobTimeout, "Whole-job timeout in seconds (0 = none)")
	fs.String("nats-url", defaults.NATS.URL, "NATS server URL")
	fs.Bool("nats-embedded", defaults.NATS.Embedded, "Run an embedded NATS server with JetStream")
	fs.Int("nats-port", defaults.NATS.Port, "Embedded NATS server port")
	fs.String("store-driver", defaults.Store.Driver, "Job store driver (memory|sqlite)")
	fs.String("store-path", defaults.Store.Path, "SQLite job store path")
	fs.Int("retention-hours", defaults.Store.RetentionHours, "Hours to keep finished jobs (0 = forever)")
	fs.String("telemetry-exporter", defaults.Telemetry.Exporter, "Trace exporter (none|stdout|otlp)")
	fs.String("telemetry-otlp-endpoint", defaults.Telemetry.OTLPEndpoint, "OTLP gRPC endpoint")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("PDF2AUDIO")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("openai.api_key", "PDF2AUDIO_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind openai env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("pdf2audio")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("paths.scratch_dir", c.Paths.ScratchDir)
	v.SetDefault("paths.upload_dir", c.Paths.UploadDir)
	v.SetDefault("pdf.max_pages", c.PDF.MaxPages)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.command", c.TTS.Command)
	v.SetDefault("tts.extra_args", c.TTS.ExtraArgs)
	v.SetDefault("tts.chunk_timeout", c.TTS.ChunkTimeout)
	v.SetDefault("tts.tone_sample_rate", c.TTS.ToneSampleRate)
	v.SetDefault("tts.max_chunk_chars", c.TTS.MaxChunkChars)
	v.SetDefault("openai.api_key", c.OpenAI.APIKey)
	v.SetDefault("openai.base_url", c.OpenAI.BaseURL)
	v.SetDefault("openai.model", c.OpenAI.Model)
	v.SetDefault("openai.voice", c.OpenAI.Voice)
	v.SetDefault("openai.speed", c.OpenAI.Speed)
	v.SetDefault("openai.timeout", c.OpenAI.Timeout)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_upload_bytes", c.Server.MaxUploadBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.audio_url_prefix", c.Server.AudioURLPrefix)
	v.SetDefault("server.serve_audio", c.Server.ServeAudio)
	v.SetDefault("queue.transport", c.Queue.Transport)
	v.SetDefault("queue.workers", c.Queue.Workers)
	v.SetDefault("queue.job_timeout", c.Queue.JobTimeout)
	v.SetDefault("nats.url", c.NATS.URL)
	v.SetDefault("nats.embedded", c.NATS.Embedded)
	v.SetDefault("nats.port", c.NATS.Port)
	v.SetDefault("nats.store_dir", c.NATS.StoreDir)
	v.SetDefault("nats.stream", c.NATS.Stream)
	v.SetDefault("nats.subject", c.NATS.Subject)
	v.SetDefault("nats.queue_group", c.NATS.QueueGroup)
	v.SetDefault("store.driver", c.Store.Driver)
	v.SetDefault("store.path", c.Store.Path)
	v.SetDefault("store.retention_hours", c.Store.RetentionHours)
	v.SetDefault("telemetry.exporter", c.Telemetry.Exporter)
	v.SetDefault("telemetry.otlp_endpoint", c.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.otlp_insecure", c.Telemetry.OTLPInsecure)
	v.SetDefault("telemetry.service_name", c.Telemetry.ServiceName)
	v.SetDefault("log_level", c.LogLevel)
}
