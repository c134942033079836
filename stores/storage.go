package stores

import (
	"birthday-templates/core"
	"birthday-templates/stores/aws"
	"birthday-templates/stores/filesystem"
	"birthday-templates/stores/memory"
	"birthday-templates/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

// GetStore picks the template store from STORAGE_TYPE: memory (default),
// filesystem, sqlite or s3.
func GetStore() core.TemplateStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.TemplateStore

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
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "templates.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
