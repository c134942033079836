package aws

import (
	"birthday-templates/core"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "templates/"

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Store keeps each template as one JSON object under templates/.
type s3Store struct {
	s3Client s3API
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client s3API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

func (s *s3Store) templateKey(id string) (string, error) {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid template id %q: %w", id, core.ErrInvalidInput)
	}
	return keyPrefix + id + ".json", nil
}

func (s *s3Store) get(ctx context.Context, key string) (*core.Template, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read template data: %w", err)
	}
	var template core.Template
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}
	return &template, nil
}

func (s *s3Store) put(ctx context.Context, key string, template *core.Template) error {
	data, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload template %s: %w", template.ID, err)
	}
	return nil
}

func (s *s3Store) Create(ctx context.Context, template *core.Template) (string, error) {
	stored := *template
	stored.ID = ulid.Make().String()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	key, _ := s.templateKey(stored.ID)
	if err := s.put(ctx, key, &stored); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"template_id": stored.ID,
		"data_length": len(stored.Image),
	}).Info("Template created successfully")
	return stored.ID, nil
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Template, error) {
	key, err := s.templateKey(id)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}

func (s *s3Store) List(ctx context.Context) ([]*core.Template, error) {
	templates := []*core.Template{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			template, err := s.get(ctx, key)
			if err != nil {
				logrus.WithError(err).Warnf("Skipping unreadable template object %s", key)
				continue
			}
			templates = append(templates, template.Summary())
		}
	}
	slices.SortFunc(templates, func(a, b *core.Template) int { return strings.Compare(a.ID, b.ID) })
	return templates, nil
}

func (s *s3Store) Save(ctx context.Context, template *core.Template) error {
	key, err := s.templateKey(template.ID)
	if err != nil {
		return err
	}
	existing, err := s.get(ctx, key)
	if err != nil {
		return err
	}

	stored := *template
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	if err := s.put(ctx, key, &stored); err != nil {
		return err
	}
	logrus.WithField("template_id", template.ID).Info("Template saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, id string) error {
	key, err := s.templateKey(id)
	if err != nil {
		return err
	}
	_, err = s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("failed to stat template %s: %w", id, err)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	logrus.WithField("template_id", id).Info("Template deleted successfully")
	return nil
}
