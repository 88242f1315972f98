package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/netx"
	sc "github.com/dmitrijs2005/journalkeeper/internal/server/config"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	uploadObject = netx.UploadToS3PresignedURL
)

// ExportLink points at an uploaded export until ExpiresAt.
type ExportLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type exportDocument struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Entries    []models.Entry `json:"entries"`
}

// ExportService snapshots a user's journal into object storage.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewExportService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		now:         time.Now,
	}
}

// GetRandomStorageKey returns a fresh object key under the user's export prefix.
func GetRandomStorageKey(userID string, d time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%02d/%02d/%v.json", url.PathEscape(userID), d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// Export uploads every entry of userID as one JSON document and returns a
// presigned download link valid for the configured TTL.
func (s *ExportService) Export(ctx context.Context, userID string) (ExportLink, error) {
	list, err := s.repomanager.Entries(s.db).All(ctx, userID)
	if err != nil {
		return ExportLink{}, fmt.Errorf("select entries: %w", err)
	}
	if list == nil {
		list = []models.Entry{}
	}

	now := s.now().UTC()
	body, err := json.MarshalIndent(exportDocument{ExportedAt: now, Entries: list}, "", "  ")
	if err != nil {
		return ExportLink{}, fmt.Errorf("marshal export: %w", err)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return ExportLink{}, fmt.Errorf("s3 client: %w", err)
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey(userID, now)
	ttl := s.config.ExportLinkTTL

	put, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return ExportLink{}, fmt.Errorf("presign put: %w", err)
	}

	if err := uploadObject(ctx, put.URL, body); err != nil {
		return ExportLink{}, fmt.Errorf("upload export: %w", err)
	}

	get, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return ExportLink{}, fmt.Errorf("presign get: %w", err)
	}

	return ExportLink{URL: get.URL, ExpiresAt: now.Add(ttl)}, nil
}
