package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

func getOptions(path string, config dvid.Config) (badger.Options, error) {
	inMemory, _, err := config.GetBool("inmemory")
	if err != nil {
		return badger.Options{}, err
	}
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{}).
		WithNumVersionsToKeep(DefaultVersionsToKeep).
		WithSyncWrites(DefaultSyncWrites)

	readOnly, found, err := config.GetBool("ReadOnly")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithReadOnly(readOnly)
	}

	valueSizeThresh, found, err := config.GetInt("ValueThreshold")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithValueThreshold(int64(valueSizeThresh))
	}

	vlogSize, found, err := config.GetBytes("ValueLogFileSize")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithValueLogFileSize(int64(vlogSize))
	}
	return opts, nil
}

// badgerLogger routes badger's internal logging through dvid logging, demoting
// badger's chatty info messages to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	dvid.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	dvid.Warningf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	dvid.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	dvid.Debugf("badger: "+format, args...)
}
