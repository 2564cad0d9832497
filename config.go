package main

import (
	"fmt"
	"photometa/batch"
	"photometa/ledger"
	"photometa/objectstore"
	"strconv"
	"time"
)

type config struct {
	appEnv      string
	workers     int
	databaseURL string
	minio       *minioConfig
	redisAddr   string
	ledgerTTL   time.Duration
}

type minioConfig struct {
	endpoint  string
	accessKey string
	secretKey string
	bucket    string
	prefix    string
	secure    bool
}

func (c config) isDevelopment() bool {
	return c.appEnv == "development"
}

func loadConfig(getenv func(string) string) (config, error) {
	c := config{
		appEnv:      getenv("APP_ENV"),
		workers:     batch.DefaultWorkers,
		databaseURL: getenv("DATABASE_URL"),
		redisAddr:   getenv("REDIS_ADDR"),
		ledgerTTL:   ledger.DefaultTTL,
	}

	if s := getenv("PHOTOMETA_WORKERS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return config{}, fmt.Errorf("PHOTOMETA_WORKERS must be a positive integer, got %q", s)
		}
		c.workers = n
	}

	if s := getenv("LEDGER_TTL"); s != "" {
		ttl, err := time.ParseDuration(s)
		if err != nil || ttl <= 0 {
			return config{}, fmt.Errorf("LEDGER_TTL must be a positive duration, got %q", s)
		}
		c.ledgerTTL = ttl
	}

	endpoint := getenv("MINIO_ENDPOINT")
	accessKey := getenv("MINIO_ACCESS_KEY")
	secretKey := getenv("MINIO_SECRET_KEY")
	if endpoint != "" || accessKey != "" || secretKey != "" {
		if endpoint == "" || accessKey == "" || secretKey == "" {
			return config{}, fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY must be set together")
		}
		mc := &minioConfig{
			endpoint:  endpoint,
			accessKey: accessKey,
			secretKey: secretKey,
			bucket:    objectstore.DefaultBucket,
			prefix:    objectstore.DefaultPrefix,
			secure:    true,
		}
		if s := getenv("MINIO_BUCKET"); s != "" {
			mc.bucket = s
		}
		if s := getenv("MINIO_PREFIX"); s != "" {
			mc.prefix = s
		}
		if s := getenv("MINIO_INSECURE"); s != "" {
			insecure, err := strconv.ParseBool(s)
			if err != nil {
				return config{}, fmt.Errorf("MINIO_INSECURE must be a boolean, got %q", s)
			}
			mc.secure = !insecure
		}
		c.minio = mc
	}

	return c, nil
}
