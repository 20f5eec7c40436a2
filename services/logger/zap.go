package logsvc

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/lamiedu/taarifa/core"
)

// ZapLogger adapts a zap.SugaredLogger to core.Logger. Used in dev mode
// where Rollbar reporting is pointless noise.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	var (
		zl  *zap.Logger
		err error
	)
	if conf.Debug || conf.TestMode {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zl = zl.Named(conf.AppName).WithOptions(zap.AddCallerSkip(1))
	return &ZapLogger{sugar: zl.Sugar()}, nil
}

func (l ZapLogger) Debug(msg string, args ...interface{}) { l.sugar.Debugw(msg, kvs(args)...) }
func (l ZapLogger) Info(msg string, args ...interface{})  { l.sugar.Infow(msg, kvs(args)...) }
func (l ZapLogger) Warn(msg string, args ...interface{})  { l.sugar.Warnw(msg, kvs(args)...) }
func (l ZapLogger) Error(msg string, args ...interface{}) { l.sugar.Errorw(msg, kvs(args)...) }
func (l ZapLogger) Fatal(msg string, args ...interface{}) { l.sugar.Fatalw(msg, kvs(args)...) }

func (l ZapLogger) Sync() error { return l.sugar.Sync() }

// kvs shoehorns loose args into zap's key/value pairs.
func kvs(args []interface{}) []interface{} {
	pairs := make([]interface{}, 0, 2*len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			pairs = append(pairs, zap.Error(v))
		case map[string]interface{}:
			for k, val := range v {
				pairs = append(pairs, k, val)
			}
		default:
			pairs = append(pairs, zap.Any("arg"+strconv.Itoa(i), v))
		}
	}
	return pairs
}
