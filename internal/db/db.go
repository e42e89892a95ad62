package db

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/models"
)

// Connect opens the MySQL connection and runs migrations. The handle is
// owned by the caller (the composition root), never stashed in a global.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("db connect failed")
	}

	if err := Migrate(gdb); err != nil {
		logrus.WithError(err).Fatal("db migrate failed")
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&conversation.Conversation{},
		&conversation.Message{},
		&conversation.AskJob{},
	)
}

// Close releases the underlying sql.DB pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
