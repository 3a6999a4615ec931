package config

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"log"

	"github.com/Netflix/go-env"
)

type Certificate struct {
	Raw *x509.Certificate
}

func (c *Certificate) UnmarshalEnvironmentValue(data string) error {
	decodedData, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		log.Fatal("Could not decode base64-encoded certificate:", err)
	}

	CACertBlock, _ := pem.Decode(decodedData)
	if CACertBlock == nil {
		log.Fatal("CA certificate is invalid")
	}

	CACert, err := x509.ParseCertificate(CACertBlock.Bytes)
	if err != nil {
		log.Fatal("Could not parse CA cert:", err)
	}

	c.Raw = CACert

	return nil
}

type Config struct {
	GrpcListenAddress string `env:"GRPC_LISTEN_ADDRESS,default=0.0.0.0:8080"`
	HTTPListenAddress string `env:"HTTP_LISTEN_ADDRESS,default=0.0.0.0:8081"`
	SQLiteDirPath     string `env:"SQLITE_DIR_PATH,default=db"`
	PgDatabaseUrl     string `env:"DATABASE_URL"`

	// SyncPageSize bounds one backfill listing or delivery page.
	SyncPageSize int `env:"SYNC_PAGE_SIZE,default=100"`
	// MaxReadRecordsCount bounds the tailing read and the wraparound
	// probe window.
	MaxReadRecordsCount int64 `env:"MAX_READ_RECORDS_COUNT,default=50"`
	// SeqIDCeiling is the sequence value at which per-edge counters
	// wrap back to one.
	SeqIDCeiling int64 `env:"SEQ_ID_CEILING,default=2147483647"`

	CACert *Certificate `env:"CA_CERT"`
}

func NewConfig() (*Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
