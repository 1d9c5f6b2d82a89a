package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"codesync-server/core"
	"codesync-server/stores/aws"
	"codesync-server/stores/filesystem"
	"codesync-server/stores/memory"
	"codesync-server/stores/sqlite"
)

// GetStore picks the room persistence backend from STORAGE_TYPE. Rooms stay
// fully live without a durable backend; the in-memory store is the default.
func GetStore() core.RoomStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var (
		store core.RoomStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store, err = filesystem.NewRoomStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "codesync.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store, err = sqlite.NewRoomStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store, err = aws.NewRoomStore(bucketName)
	default:
		store = memory.NewRoomStore()
		storageField["storageType"] = "in-memory"
	}

	if err != nil {
		logrus.WithFields(storageField).WithError(err).Fatal("Failed to initialize storage")
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
