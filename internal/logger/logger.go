package logger

import (
	"github.com/sirupsen/logrus"
)

// Log - общий логгер сервиса. До вызова Init пишет в stderr с настройками logrus по умолчанию.
var Log = logrus.New()

// Init настраивает уровень и формат логов: JSON для production, текст для остальных окружений.
func Init(level, env string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// ForTransaction возвращает запись лога с идентификатором сделки.
func ForTransaction(id int64) *logrus.Entry {
	return Log.WithField("transaction_id", id)
}
