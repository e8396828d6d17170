package config

import "github.com/kelseyhightower/envconfig"

type APIConfig struct {
	MongoURI string `envconfig:"MONGO_URI" required:"true"`
	MongoDB  string `envconfig:"MONGO_DB" default:"zapmotor"`

	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WorkerConfig struct {
	MongoURI string `envconfig:"MONGO_URI" required:"true"`
	MongoDB  string `envconfig:"MONGO_DB" default:"zapmotor"`

	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"300"`

	// Each job owns a whole browser context; keep this low.
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"2"`

	// Browser
	SessionsBase string `envconfig:"SESSIONS_BASE" default:"/tmp/whatsapp_sessions"`
	Headless     bool   `envconfig:"HEADLESS" default:"true"`
	BrowserBin   string `envconfig:"BROWSER_BIN"`

	// Session linking
	LinkTimeoutSec  int `envconfig:"LINK_TIMEOUT_SEC" default:"150"`
	LinkPollSec     int `envconfig:"LINK_POLL_SEC" default:"2"`

	// Campaign dispatch
	AuthWaitSec     int     `envconfig:"AUTH_WAIT_SEC" default:"60"`
	ComposerWaitSec int     `envconfig:"COMPOSER_WAIT_SEC" default:"15"`
	SendRPM         float64 `envconfig:"SEND_RPM" default:"20"`
	SendBurst       int     `envconfig:"SEND_BURST" default:"3"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
