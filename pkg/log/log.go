package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// До вызова Init все сообщения уходят в no-op logger.
func init() {
	sugar = zap.NewNop().Sugar()
}

// Init инициализирует zap logger.
func Init(level, format, outputPath string) {
	var err error
	var logger *zap.Logger
	var zapConfig zap.Config

	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = logLevel
	zapConfig.Encoding = encoding
	zapConfig.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		// Если задан путь, пишем одновременно в файл и в stdout.
		_ = os.MkdirAll(outputPath, os.ModePerm)
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, outputPath+"/app.log")
	}

	logger, err = zapConfig.Build()
	if err != nil {
		panic(err)
	}

	sugar = logger.Sugar()
}

// Info пишет сообщение уровня info.
func Info(msg string) {
	sugar.Info(msg)
}

// Infof пишет форматированное сообщение уровня info.
func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow пишет структурированное сообщение уровня info с парами ключ-значение.
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

// Warnf пишет форматированное сообщение уровня warn.
func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

// Error пишет сообщение уровня error вместе с ошибкой.
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

// Fatal пишет сообщение уровня fatal вместе с ошибкой и завершает программу.
func Fatal(msg string, err error) {
	sugar.Fatalw(msg, "error", err)
}

func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Sync сбрасывает буферизованные записи в подлежащий Writer.
func Sync() {
	_ = sugar.Sync()
}
