package attachments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lockify/internal/config"
	"lockify/internal/vault"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrForeignKey = errors.New("attachment key does not belong to the caller")

type Presigned struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Presigner hands out short-lived S3 URLs for entry attachments. Keys are
// always placed under the owner's prefix so that entries can only reference
// their own objects.
type Presigner struct {
	client presignAPI
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func New(ctx context.Context, cfg config.S3) (*Presigner, error) {
	const op = "attachments.New"

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.Bucket,
		ttl:    cfg.PresignTTL,
		now:    time.Now,
	}, nil
}

func (p *Presigner) PresignUpload(ctx context.Context, owner string) (Presigned, error) {
	const op = "attachments.PresignUpload"

	key := p.newKey(owner)

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return Presigned{}, fmt.Errorf("%s: %w", op, err)
	}

	return Presigned{Key: key, URL: req.URL, ExpiresAt: p.now().Add(p.ttl).UTC()}, nil
}

func (p *Presigner) PresignDownload(ctx context.Context, owner, key string) (Presigned, error) {
	const op = "attachments.PresignDownload"

	if !strings.HasPrefix(key, vault.AttachmentPrefix(owner)) || strings.Contains(key, "..") {
		return Presigned{}, fmt.Errorf("%s: %w", op, ErrForeignKey)
	}

	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return Presigned{}, fmt.Errorf("%s: %w", op, err)
	}

	return Presigned{Key: key, URL: req.URL, ExpiresAt: p.now().Add(p.ttl).UTC()}, nil
}

func (p *Presigner) newKey(owner string) string {
	d := p.now().UTC()

	return fmt.Sprintf("%s%d/%02d/%02d/%s", vault.AttachmentPrefix(owner), d.Year(), d.Month(), d.Day(), uuid.New())
}
