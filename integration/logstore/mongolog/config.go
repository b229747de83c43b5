package mongolog

import (
	"errors"
	"net/url"
	"time"

	"github.com/dmitrymomot/quicksilver/integration/database/mongo"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// Config describes where the broadcast log lives and how cursors behave.
type Config struct {
	Hosts              string        `env:"QUICKSILVER_MONGO_HOSTS" envDefault:"localhost:27017"`
	ReplicaSet         string        `env:"QUICKSILVER_MONGO_REPLICA_SET"`
	Database           string        `env:"QUICKSILVER_MONGO_DATABASE" envDefault:"quicksilver"`
	Collection         string        `env:"QUICKSILVER_MONGO_COLLECTION" envDefault:"messages"`
	AwaitData          bool          `env:"QUICKSILVER_MONGO_AWAIT_DATA" envDefault:"false"`
	MaxAwaitTime       time.Duration `env:"QUICKSILVER_MONGO_MAX_AWAIT_TIME" envDefault:"1s"`
	CappedSizeBytes    int64         `env:"QUICKSILVER_MONGO_CAPPED_SIZE_BYTES" envDefault:"16777216"`
	CappedMaxDocuments int64         `env:"QUICKSILVER_MONGO_CAPPED_MAX_DOCUMENTS" envDefault:"0"`
	ConnectTimeout     time.Duration `env:"QUICKSILVER_MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryAttempts      int           `env:"QUICKSILVER_MONGO_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval      time.Duration `env:"QUICKSILVER_MONGO_RETRY_INTERVAL" envDefault:"5s"`
}

// Validate reports missing required fields as broadcast.ErrConfigInvalid.
func (c Config) Validate() error {
	var errs []error
	if c.Hosts == "" {
		errs = append(errs, errors.New("mongolog: hosts are required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("mongolog: database is required"))
	}
	if c.Collection == "" {
		errs = append(errs, errors.New("mongolog: collection is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{broadcast.ErrConfigInvalid}, errs...)...)
	}
	return nil
}

// URI builds the connection string from Hosts and ReplicaSet.
func (c Config) URI() string {
	uri := "mongodb://" + c.Hosts + "/"
	if c.ReplicaSet != "" {
		uri += "?" + url.Values{"replicaSet": {c.ReplicaSet}}.Encode()
	}
	return uri
}

// ClientConfig returns the connection settings for the mongo integration.
func (c Config) ClientConfig() mongo.Config {
	return mongo.Config{
		ConnectionURL:  c.URI(),
		ConnectTimeout: c.ConnectTimeout,
		RetryWrites:    true,
		RetryReads:     true,
		RetryAttempts:  c.RetryAttempts,
		RetryInterval:  c.RetryInterval,
	}
}
